// Package service implements the simulation core: the vehicle registry and
// movement rules, the accident model, the per-intersection traffic light
// state machines, the flow analyzer, and the tick scheduler that drives them.
//
// Each tick runs a fixed pipeline: clear expired accidents, spawn vehicles,
// advance movement in parallel per intersection, inject new accidents, feed
// the analyzer, apply light adjustments, then publish telemetry. The tick is
// a barrier: every stage completes before the next reads its results.
package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/smartcity/simulator/internal/config"
	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/network"
	"github.com/smartcity/simulator/pkg/utils"
)

// Simulation owns all live state of one run: the lane states, the vehicle
// registry, and the control and analytics components. External collaborators
// (message bus, storage) are reached only through their domain interfaces.
type Simulation struct {
	cfg *config.Config
	net *network.Network

	lanes map[domain.LaneID]*laneState

	controller *LightController
	analyzer   *FlowAnalyzer
	accidents  *AccidentModel
	planner    *RoutePlanner

	gateway domain.Gateway
	repo    domain.SnapshotRepository

	rng  *rand.Rand
	tick uint64

	vehicles map[uuid.UUID]*domain.Vehicle
	order    []uuid.UUID // registry insertion order, for deterministic iteration

	snapMu sync.RWMutex
	latest *domain.TrafficUpdate

	wgBg sync.WaitGroup // background persistence writes
}

// NewSimulation wires the simulation core over a road network.
func NewSimulation(cfg *config.Config, net *network.Network, gateway domain.Gateway, repo domain.SnapshotRepository) *Simulation {
	lanes := make(map[domain.LaneID]*laneState, len(net.Lanes()))
	for _, lane := range net.Lanes() {
		lanes[lane.ID] = newLaneState(lane)
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Simulation{
		cfg:        cfg,
		net:        net,
		lanes:      lanes,
		controller: NewLightController(cfg, net),
		analyzer:   NewFlowAnalyzer(cfg, net),
		accidents:  NewAccidentModel(lanes, cfg.AccidentProbability, cfg.BaseBlockTicks),
		planner:    NewRoutePlanner(net, lanes, cfg.ReplanOccupancyRatio, cfg.MaxReplanFailures),
		gateway:    gateway,
		repo:       repo,
		rng:        rand.New(rand.NewSource(seed)),
		vehicles:   make(map[uuid.UUID]*domain.Vehicle),
	}
}

// Tick advances the simulation by one step.
func (s *Simulation) Tick() {
	s.tick++
	tick := s.tick

	// Accidents whose clear tick arrived release their lane before anything
	// moves, so the lane accepts entries this tick.
	for _, vehicleID := range s.accidents.ClearExpired(tick) {
		s.removeCrashed(vehicleID)
	}

	for _, ls := range s.lanes {
		ls.resetTickStats()
	}

	s.spawnVehicles(tick)
	s.advanceVehicles(tick)
	s.markCrashed(s.accidents.Inject(tick, s.rng, s.accidentCandidates()))

	stats := s.collectStats(tick)
	s.analyzer.Ingest(tick, stats)
	predictions := s.analyzer.Predictions()
	recommendations := s.analyzer.Recommend(tick, s.controller.Adjustment)
	alerts := s.analyzer.Alerts(tick, stats)

	s.controller.ApplyAdjustments(recommendations)
	s.controller.Step(tick)

	update := s.buildSnapshot(tick, stats, predictions)
	s.snapMu.Lock()
	s.latest = update
	s.snapMu.Unlock()

	s.gateway.PublishUpdate(*update)
	if len(alerts) > 0 {
		s.gateway.PublishAlerts(alerts)
	}
	s.persistAsync(*update)

	s.stageInboundAdjustments()
	s.removeFinished()
}

// spawnVehicles runs one Bernoulli draw per entry intersection. The type is
// drawn from a fixed distribution (car 50%, truck 25%, bus 15%, emergency van
// 10%) and the destination uniformly among the other exits.
func (s *Simulation) spawnVehicles(tick uint64) {
	exits := s.net.Exits()
	for _, entry := range s.net.Entries() {
		if s.rng.Float64() >= s.cfg.SpawnProbability {
			continue
		}

		candidates := lo.Filter(exits, func(id domain.IntersectionID, _ int) bool { return id != entry })
		if len(candidates) == 0 {
			continue
		}
		dest := candidates[s.rng.Intn(len(candidates))]

		route, err := s.planner.Plan(entry, dest, tick)
		if err != nil {
			log.Printf("spawn: no route from %d to %d, skipping", entry, dest)
			continue
		}
		if len(route) == 0 {
			continue
		}

		id := uuid.New()
		first := s.lanes[route[0]]
		if !first.tryEnter(id, tick) {
			first.dropFromQueue(id) // entry lane full, no vehicle this tick
			continue
		}

		v := &domain.Vehicle{
			ID:            id,
			Type:          s.drawVehicleType(),
			Origin:        entry,
			Destination:   dest,
			CurrentLane:   route[0],
			Route:         route[1:],
			Status:        domain.StatusSpawning,
			SpawnedAtTick: tick,
		}
		s.vehicles[id] = v
		s.order = append(s.order, id)
		log.Printf("spawn: %s %s from %d to %d (%d lanes)", v.Type, id, entry, dest, len(route))
	}
}

func (s *Simulation) drawVehicleType() domain.VehicleType {
	r := s.rng.Float64()
	switch {
	case r < 0.50:
		return domain.VehicleCar
	case r < 0.75:
		return domain.VehicleTruck
	case r < 0.90:
		return domain.VehicleBus
	default:
		return domain.VehicleEmergencyVan
	}
}

// advanceVehicles runs the movement pass. Vehicles are grouped by the
// intersection their current lane feeds, and each group runs on its own
// worker: all light queries and downstream lane entries of a group belong to
// that one intersection, so groups only meet at lane mutexes.
func (s *Simulation) advanceVehicles(tick uint64) {
	buckets := make(map[domain.IntersectionID][]*domain.Vehicle)
	for _, id := range s.order {
		v := s.vehicles[id]
		if v.Status.Terminal() || v.Status == domain.StatusCrashed {
			continue
		}
		lane, ok := s.net.Lane(v.CurrentLane)
		if !ok {
			panic(fmt.Sprintf("vehicle %s on unknown lane %d", v.ID, v.CurrentLane))
		}
		buckets[lane.To] = append(buckets[lane.To], v)
	}

	var g errgroup.Group
	g.SetLimit(max(1, len(s.net.Intersections())))
	for _, group := range buckets {
		group := group
		g.Go(func() error {
			for _, v := range group {
				s.moveVehicle(v, tick)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail; the join is the tick barrier
}

// moveVehicle applies the per-tick movement rules to one vehicle.
func (s *Simulation) moveVehicle(v *domain.Vehicle, tick uint64) {
	cur := s.lanes[v.CurrentLane]
	curLane := cur.lane

	// A blocked current lane holds its vehicles in place until it clears.
	if cur.blocked(tick) {
		s.holdWaiting(v, cur)
		return
	}

	// Traversal pacing: slower types need more than one tick per lane. A
	// vehicle still mid-lane is not at the intersection yet, so it neither
	// consults the signal nor counts as waiting.
	if !v.AdvanceReady() {
		v.Status = domain.StatusMoving
		return
	}

	// Emergency vehicles commandeer the signal; everyone else needs green.
	if v.Type.IsEmergency() {
		s.controller.SetEmergencyOverride(curLane.To, curLane.ID, v.ID)
	} else if !s.controller.IsGreen(curLane.To, curLane.ID) {
		s.holdWaiting(v, cur)
		return
	}

	next, hasNext := v.NextLane()
	if hasNext {
		nextLS := s.lanes[next]
		if nextLS.blocked(tick) || nextLS.occupancyRatio() > s.cfg.ReplanOccupancyRatio {
			reason := "congestion ahead"
			if nextLS.blocked(tick) {
				reason = "next lane blocked"
			}
			nextLS.dropFromQueue(v.ID)
			if !s.planner.Replan(v, tick, reason) {
				if v.Status == domain.StatusStuck {
					s.releaseVehicle(v, cur)
					return
				}
				s.holdWaiting(v, cur)
				return
			}
			next, hasNext = v.NextLane()
		}
	}

	if !hasNext {
		// Route consumed: the vehicle exits the network at curLane.To.
		cur.leave()
		if v.Type.IsEmergency() {
			s.controller.ClearEmergencyOverride(curLane.To, v.ID)
		}
		v.Status = domain.StatusArrived
		v.Route = nil
		v.WaitTicks = 0
		log.Printf("vehicle %s arrived at intersection %d", v.ID, v.Destination)
		return
	}

	if !s.lanes[next].tryEnter(v.ID, tick) {
		s.holdWaiting(v, cur) // at capacity; FIFO queue preserves position
		return
	}

	cur.leave()
	if v.Type.IsEmergency() {
		s.controller.ClearEmergencyOverride(curLane.To, v.ID)
	}
	v.CurrentLane = next
	v.Route = v.Route[1:]
	v.Status = domain.StatusMoving
	v.WaitTicks = 0
	v.Progress-- // the advance spends the accrued unit
}

func (s *Simulation) holdWaiting(v *domain.Vehicle, cur *laneState) {
	v.Status = domain.StatusWaiting
	v.WaitTicks++
	cur.recordWaiting(v.WaitTicks)
}

// releaseVehicle takes a vehicle out of the network mid-route (stuck retire).
func (s *Simulation) releaseVehicle(v *domain.Vehicle, cur *laneState) {
	cur.leave()
	if next, ok := v.NextLane(); ok {
		s.lanes[next].dropFromQueue(v.ID)
	}
	if v.Type.IsEmergency() {
		s.controller.ClearEmergencyOverride(cur.lane.To, v.ID)
	}
}

// removeCrashed retires a crashed vehicle once its accident clears. The
// vehicle may still hold a queue slot on the lane it was waiting to enter;
// that slot must go too, or the queue head wedges the lane forever.
func (s *Simulation) removeCrashed(id uuid.UUID) {
	v, ok := s.vehicles[id]
	if !ok {
		return
	}
	s.lanes[v.CurrentLane].leave()
	if next, ok := v.NextLane(); ok {
		s.lanes[next].dropFromQueue(id)
	}
	v.Status = domain.StatusArrived // retired; slot already released
	v.Route = nil
	log.Printf("vehicle %s removed after accident cleared", id)
	s.deleteVehicle(id)
}

// accidentCandidates picks one movable vehicle per occupied lane as this
// tick's potential crasher.
func (s *Simulation) accidentCandidates() map[domain.LaneID]uuid.UUID {
	candidates := make(map[domain.LaneID]uuid.UUID)
	for _, id := range s.order {
		v := s.vehicles[id]
		if v.Status != domain.StatusMoving && v.Status != domain.StatusWaiting {
			continue
		}
		if _, taken := candidates[v.CurrentLane]; !taken {
			candidates[v.CurrentLane] = id
		}
	}
	return candidates
}

// markCrashed flags exactly the vehicles the accident model chose. Vehicles
// that reached a terminal state this tick are left alone. A crashed emergency
// van releases any signal override it held.
func (s *Simulation) markCrashed(crashes []crash) {
	for _, c := range crashes {
		v, ok := s.vehicles[c.vehicle]
		if !ok || v.Status.Terminal() || v.Status == domain.StatusCrashed {
			continue
		}
		v.Status = domain.StatusCrashed
		if v.Type.IsEmergency() {
			lane, _ := s.net.Lane(v.CurrentLane)
			s.controller.ClearEmergencyOverride(lane.To, v.ID)
		}
	}
}

func (s *Simulation) collectStats(tick uint64) []LaneStat {
	stats := make([]LaneStat, 0, len(s.lanes))
	for _, lane := range s.net.Lanes() {
		stats = append(stats, s.lanes[lane.ID].stats(tick))
	}
	return stats
}

func (s *Simulation) buildSnapshot(tick uint64, stats []LaneStat, predictions []domain.LanePrediction) *domain.TrafficUpdate {
	byIntersection := lo.GroupBy(stats, func(st LaneStat) domain.IntersectionID { return st.Intersection })

	ids := lo.Keys(byIntersection)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snapshots := make([]domain.IntersectionSnapshot, 0, len(ids))
	for _, id := range ids {
		group := byIntersection[id]
		occ := make(map[domain.LaneID]int, len(group))
		wait := make(map[domain.LaneID]float64, len(group))
		for _, st := range group {
			occ[st.Lane] = st.Occupancy
			wait[st.Lane] = utils.RoundTo(st.AverageWait, 2)
		}
		snapshots = append(snapshots, domain.IntersectionSnapshot{
			ID:              id,
			PhasePerGroup:   s.controller.PhaseMap(id),
			OccupancyByLane: occ,
			WaitingByLane:   wait,
			Congestion:      utils.RoundTo(IntersectionCongestion(group), 3),
		})
	}

	accidents := s.accidents.Active()
	sort.Slice(accidents, func(i, j int) bool { return accidents[i].Lane < accidents[j].Lane })

	return &domain.TrafficUpdate{
		Tick:          tick,
		TotalVehicles: len(s.vehicles),
		Intersections: snapshots,
		Accidents:     accidents,
		Predictions:   predictions,
		Timestamp:     time.Now().UTC(),
	}
}

// persistAsync saves the snapshot off the tick's critical path.
func (s *Simulation) persistAsync(update domain.TrafficUpdate) {
	if s.repo == nil {
		return
	}
	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveSnapshot(ctx, update); err != nil {
			log.Printf("persist: failed to save snapshot for tick %d: %v", update.Tick, err)
		}
	}()
}

// stageInboundAdjustments drains the gateway's command queue. Per
// intersection the seconds are summed; a sum outside the clamp range or an
// unknown intersection discards the command with a warning. Staged commands
// apply at the start of the next tick.
func (s *Simulation) stageInboundAdjustments() {
	sums := make(map[int]int)
	for _, adj := range s.gateway.Adjustments() {
		sums[adj.IntersectionID] += adj.AddSecondsGreen
	}
	for id, seconds := range sums {
		if seconds < s.cfg.AdjustClampMin || seconds > s.cfg.AdjustClampMax {
			log.Printf("gateway: adjustment %+d for intersection %d outside clamp range [%d,%d], discarded",
				seconds, id, s.cfg.AdjustClampMin, s.cfg.AdjustClampMax)
			continue
		}
		err := s.controller.QueueExternal(domain.LightAdjustment{IntersectionID: id, AddSecondsGreen: seconds})
		if err != nil {
			log.Printf("gateway: adjustment for intersection %d discarded: %v", id, err)
		}
	}
}

// removeFinished drops vehicles in terminal states from the registry.
func (s *Simulation) removeFinished() {
	for _, id := range append([]uuid.UUID(nil), s.order...) {
		v := s.vehicles[id]
		if !v.Status.Terminal() {
			continue
		}
		if v.Status == domain.StatusArrived && len(v.Route) > 0 {
			panic(fmt.Sprintf("vehicle %s arrived with %d lanes remaining", id, len(v.Route)))
		}
		s.deleteVehicle(id)
	}
}

func (s *Simulation) deleteVehicle(id uuid.UUID) {
	delete(s.vehicles, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Latest returns the most recent telemetry snapshot, or nil before the first
// tick completes.
func (s *Simulation) Latest() *domain.TrafficUpdate {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.latest
}

// VehicleCount returns the number of live vehicles as of the latest snapshot.
func (s *Simulation) VehicleCount() int {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.latest == nil {
		return 0
	}
	return s.latest.TotalVehicles
}

// CurrentTick returns the last completed tick.
func (s *Simulation) CurrentTick() uint64 {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.latest == nil {
		return 0
	}
	return s.latest.Tick
}

// QueueAdjustment lets the HTTP API inject a light adjustment through the
// same validation as the message bus.
func (s *Simulation) QueueAdjustment(adj domain.LightAdjustment) error {
	if adj.AddSecondsGreen < s.cfg.AdjustClampMin || adj.AddSecondsGreen > s.cfg.AdjustClampMax {
		return fmt.Errorf("add_seconds_green %d outside clamp range [%d,%d]",
			adj.AddSecondsGreen, s.cfg.AdjustClampMin, s.cfg.AdjustClampMax)
	}
	return s.controller.QueueExternal(adj)
}

// WaitBackground blocks until pending background writes complete. Call during
// graceful shutdown to avoid dropped snapshots.
func (s *Simulation) WaitBackground() {
	s.wgBg.Wait()
}
