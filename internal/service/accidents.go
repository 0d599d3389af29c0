package service

import (
	"log"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/smartcity/simulator/internal/domain"
)

// AccidentModel randomly blocks occupied lanes for a bounded duration
// proportional to severity. At most one active record exists per lane; a draw
// on an already-blocked lane is a no-op.
type AccidentModel struct {
	lanes       map[domain.LaneID]*laneState
	probability float64 // base rate, scaled by occupancy/capacity
	blockTicks  int     // clearTick = start + severity*blockTicks

	mu     sync.Mutex
	active map[domain.LaneID]*domain.AccidentRecord
	// crashed maps a blocked lane to the vehicle that caused the accident;
	// that vehicle is removed from the registry when the lane clears.
	crashed map[domain.LaneID]uuid.UUID
}

func NewAccidentModel(lanes map[domain.LaneID]*laneState, probability float64, blockTicks int) *AccidentModel {
	return &AccidentModel{
		lanes:       lanes,
		probability: probability,
		blockTicks:  blockTicks,
		active:      make(map[domain.LaneID]*domain.AccidentRecord),
		crashed:     make(map[domain.LaneID]uuid.UUID),
	}
}

// crash pairs a new accident record with the vehicle that caused it, so the
// registry marks exactly that vehicle and no other.
type crash struct {
	record  domain.AccidentRecord
	vehicle uuid.UUID
}

// Inject runs the per-lane Bernoulli draw for this tick. candidates maps each
// occupied lane to one vehicle currently on it; the drawn lane's vehicle is
// marked Crashed until the record clears.
func (m *AccidentModel) Inject(tick uint64, rng *rand.Rand, candidates map[domain.LaneID]uuid.UUID) []crash {
	m.mu.Lock()
	defer m.mu.Unlock()

	var created []crash
	for laneID, vehicleID := range candidates {
		if _, already := m.active[laneID]; already {
			continue // one active record per lane
		}
		ls := m.lanes[laneID]
		occ := ls.currentOccupancy()
		if occ == 0 {
			continue
		}

		p := m.probability * float64(occ) / float64(ls.lane.Capacity)
		if rng.Float64() >= p {
			continue
		}

		severity := 1 + rng.Intn(5)
		record := &domain.AccidentRecord{
			Lane:      laneID,
			Severity:  severity,
			StartTick: tick,
			ClearTick: tick + uint64(severity*m.blockTicks),
		}
		if record.ClearTick <= record.StartTick {
			panic("accident: clear tick must follow start tick")
		}

		m.active[laneID] = record
		m.crashed[laneID] = vehicleID

		ls.mu.Lock()
		ls.accident = record
		ls.mu.Unlock()

		created = append(created, crash{record: *record, vehicle: vehicleID})
		log.Printf("accident: lane %s blocked until tick %d (severity %d)", ls.lane.Name, record.ClearTick, severity)
	}
	return created
}

// ClearExpired removes records whose clear tick has arrived and returns the
// ids of vehicles crashed on those lanes so the registry can retire them.
func (m *AccidentModel) ClearExpired(tick uint64) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cleared []uuid.UUID
	for laneID, record := range m.active {
		if record.Active(tick) {
			continue
		}
		ls := m.lanes[laneID]
		ls.mu.Lock()
		ls.accident = nil
		ls.mu.Unlock()

		if vehicleID, ok := m.crashed[laneID]; ok {
			cleared = append(cleared, vehicleID)
			delete(m.crashed, laneID)
		}
		delete(m.active, laneID)
		log.Printf("accident: lane %s cleared at tick %d", ls.lane.Name, tick)
	}
	return cleared
}

// Active returns the currently active records, for the telemetry snapshot.
func (m *AccidentModel) Active() []domain.AccidentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]domain.AccidentRecord, 0, len(m.active))
	for _, record := range m.active {
		records = append(records, *record)
	}
	return records
}
