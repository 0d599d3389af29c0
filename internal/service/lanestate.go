package service

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/network"
)

// laneState is the mutable per-lane simulation state. The static lane
// definition stays in the network arena; this struct owns occupancy, the FIFO
// entry queue, and the active accident record.
//
// Access is synchronized by the embedded mutex. Movement workers never hold
// two lane locks at once: a vehicle reserves its slot on the next lane first,
// then releases, then decrements the lane it left.
type laneState struct {
	mu sync.Mutex

	lane      network.Lane
	occupancy int

	// queue holds vehicles waiting to enter this lane, oldest first. The
	// head advances first once capacity frees.
	queue []uuid.UUID

	accident *domain.AccidentRecord

	// per-tick waiting aggregation, reset by resetTickStats
	waitCount int
	waitSum   float64
}

func newLaneState(lane network.Lane) *laneState {
	return &laneState{lane: lane}
}

// blocked reports whether an active accident covers this lane at tick.
func (ls *laneState) blocked(tick uint64) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.accident != nil && ls.accident.Active(tick)
}

// tryEnter reserves a slot for the vehicle, honouring capacity, blockage, and
// FIFO order among queued vehicles. On refusal due to capacity the vehicle is
// appended to the queue if not already present.
func (ls *laneState) tryEnter(id uuid.UUID, tick uint64) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.accident != nil && ls.accident.Active(tick) {
		return false // blocked lanes accept no new entries
	}
	if ls.occupancy >= ls.lane.Capacity {
		ls.enqueueLocked(id)
		return false
	}
	if len(ls.queue) > 0 && ls.queue[0] != id {
		ls.enqueueLocked(id)
		return false // earlier arrivals go first
	}

	if len(ls.queue) > 0 && ls.queue[0] == id {
		ls.queue = ls.queue[1:]
	}
	ls.occupancy++
	ls.assertOccupancyLocked()
	return true
}

// leave releases the vehicle's slot on this lane.
func (ls *laneState) leave() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.occupancy--
	ls.assertOccupancyLocked()
}

func (ls *laneState) enqueueLocked(id uuid.UUID) {
	for _, queued := range ls.queue {
		if queued == id {
			return
		}
	}
	ls.queue = append(ls.queue, id)
}

// dropFromQueue removes a vehicle from the entry queue, e.g. after a replan
// routed it elsewhere or it left the simulation.
func (ls *laneState) dropFromQueue(id uuid.UUID) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i, queued := range ls.queue {
		if queued == id {
			ls.queue = append(ls.queue[:i], ls.queue[i+1:]...)
			return
		}
	}
}

// recordWaiting accumulates one waiting vehicle's wait time for this tick's
// lane statistics.
func (ls *laneState) recordWaiting(waitTicks int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.waitCount++
	ls.waitSum += float64(waitTicks)
}

func (ls *laneState) resetTickStats() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.waitCount = 0
	ls.waitSum = 0
}

// stats returns a consistent view of the lane for the analyzer.
func (ls *laneState) stats(tick uint64) LaneStat {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	avgWait := 0.0
	if ls.waitCount > 0 {
		avgWait = ls.waitSum / float64(ls.waitCount)
	}
	return LaneStat{
		Lane:         ls.lane.ID,
		Intersection: ls.lane.To,
		Occupancy:    ls.occupancy,
		Capacity:     ls.lane.Capacity,
		AverageWait:  avgWait,
		Blocked:      ls.accident != nil && ls.accident.Active(tick),
	}
}

// occupancyRatio returns occupancy/capacity without tick statistics.
func (ls *laneState) occupancyRatio() float64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return float64(ls.occupancy) / float64(ls.lane.Capacity)
}

func (ls *laneState) currentOccupancy() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.occupancy
}

// assertOccupancyLocked enforces the 0 <= occupancy <= capacity invariant.
// A violation means the movement logic is unsound, so it is fatal.
func (ls *laneState) assertOccupancyLocked() {
	if ls.occupancy < 0 || ls.occupancy > ls.lane.Capacity {
		panic(fmt.Sprintf("lane %s occupancy %d out of bounds [0,%d]",
			ls.lane.Name, ls.occupancy, ls.lane.Capacity))
	}
}

// LaneStat is one lane's contribution to a tick's flow statistics.
type LaneStat struct {
	Lane         domain.LaneID
	Intersection domain.IntersectionID // the intersection whose lights control this approach
	Occupancy    int
	Capacity     int
	AverageWait  float64
	Blocked      bool
}
