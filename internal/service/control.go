package service

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/smartcity/simulator/internal/config"
	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/network"
	"github.com/smartcity/simulator/pkg/utils"
)

// Approach groups. Incoming lanes are partitioned by grid axis so that
// opposing approaches share a phase and crossing approaches never show green
// together.
const (
	groupEastWest   = "ew"
	groupNorthSouth = "ns"
)

type phaseKind int

const (
	phaseGreen phaseKind = iota
	phaseYellow
	phaseAllRed
)

// lightState is one intersection's signal state machine. It is owned by the
// intersection's movement worker during a tick and by the scheduler between
// phases; there is never more than one writer at a time.
type lightState struct {
	intersection domain.IntersectionID
	groups       []string // cycle order
	laneGroup    map[domain.LaneID]string

	phaseIdx   int    // index into the derived phase cycle
	phaseStart uint64 // tick the current phase began
	adjustment int    // one-shot green extension in seconds, reset on phase change

	override   string // lane group held green for an emergency vehicle
	overrideBy uuid.UUID
}

// phase returns the kind and lane group of the phase at index i.
// The cycle is green/yellow/all-red per group, groups in order.
func (s *lightState) phase(i int) (phaseKind, string) {
	group := s.groups[i/3]
	switch i % 3 {
	case 0:
		return phaseGreen, group
	case 1:
		return phaseYellow, group
	default:
		return phaseAllRed, group
	}
}

func (s *lightState) phaseCount() int { return 3 * len(s.groups) }

// LightController runs the per-intersection traffic light state machines.
type LightController struct {
	cfg    *config.Config
	states map[domain.IntersectionID]*lightState

	// pendingExternal accumulates inbound adjustments; they apply at the
	// start of the following tick to avoid mid-phase jumps. Guarded by extMu
	// because the HTTP API stages commands concurrently with the tick loop.
	extMu           sync.Mutex
	pendingExternal map[domain.IntersectionID]int
}

// NewLightController builds one state machine per intersection that has at
// least one incoming lane. Lanes are grouped by axis: a lane whose endpoints
// share a grid row approaches east-west, otherwise north-south.
func NewLightController(cfg *config.Config, net *network.Network) *LightController {
	c := &LightController{
		cfg:             cfg,
		states:          make(map[domain.IntersectionID]*lightState),
		pendingExternal: make(map[domain.IntersectionID]int),
	}

	for _, in := range net.Intersections() {
		incoming := net.Incoming(in.ID)
		if len(incoming) == 0 {
			continue
		}

		state := &lightState{
			intersection: in.ID,
			laneGroup:    make(map[domain.LaneID]string, len(incoming)),
		}
		seen := map[string]bool{}
		for _, lane := range incoming {
			from, _ := net.Intersection(lane.From)
			group := groupNorthSouth
			if from.Row == in.Row {
				group = groupEastWest
			}
			state.laneGroup[lane.ID] = group
			if !seen[group] {
				seen[group] = true
				state.groups = append(state.groups, group)
			}
		}
		c.states[in.ID] = state
	}
	return c
}

// HasIntersection reports whether an inbound adjustment targets a known,
// signalised intersection.
func (c *LightController) HasIntersection(id domain.IntersectionID) bool {
	_, ok := c.states[id]
	return ok
}

// IsGreen reports whether the approach lane may discharge into the
// intersection this tick. Yellow and all-red both read as "not green".
func (c *LightController) IsGreen(id domain.IntersectionID, lane domain.LaneID) bool {
	state, ok := c.states[id]
	if !ok {
		return true // unsignalised
	}
	group, ok := state.laneGroup[lane]
	if !ok {
		return true
	}
	if state.override != "" {
		return group == state.override
	}
	kind, active := state.phase(state.phaseIdx)
	return kind == phaseGreen && active == group
}

// SetEmergencyOverride holds the emergency vehicle's approach group green
// with all other approaches red until ClearEmergencyOverride.
func (c *LightController) SetEmergencyOverride(id domain.IntersectionID, lane domain.LaneID, vehicle uuid.UUID) {
	state, ok := c.states[id]
	if !ok {
		return
	}
	group, ok := state.laneGroup[lane]
	if !ok {
		return
	}
	if state.override == "" {
		log.Printf("lights: intersection %d emergency override for group %s", id, group)
	}
	state.override = group
	state.overrideBy = vehicle
}

// ClearEmergencyOverride releases an override if this vehicle holds it.
func (c *LightController) ClearEmergencyOverride(id domain.IntersectionID, vehicle uuid.UUID) {
	state, ok := c.states[id]
	if !ok || state.override == "" || state.overrideBy != vehicle {
		return
	}
	state.override = ""
	state.overrideBy = uuid.Nil
}

// QueueExternal validates and stages an inbound adjustment for the next tick.
// Returns ErrUnknownIntersection for ids outside the network.
func (c *LightController) QueueExternal(adj domain.LightAdjustment) error {
	id := domain.IntersectionID(adj.IntersectionID)
	if !c.HasIntersection(id) {
		return domain.ErrUnknownIntersection
	}
	c.extMu.Lock()
	c.pendingExternal[id] += adj.AddSecondsGreen
	c.extMu.Unlock()
	return nil
}

// ApplyAdjustments folds this tick's analyzer recommendations together with
// the externally staged adjustments. Per intersection, the seconds-to-add of
// every source are summed and the adjustment term clamped to its bounds.
func (c *LightController) ApplyAdjustments(recs []domain.Recommendation) {
	sums := make(map[domain.IntersectionID]int, len(recs))
	for _, rec := range recs {
		sums[rec.Intersection] += rec.AddSeconds
	}
	c.extMu.Lock()
	for id, seconds := range c.pendingExternal {
		sums[id] += seconds
		delete(c.pendingExternal, id)
	}
	c.extMu.Unlock()

	for id, seconds := range sums {
		state, ok := c.states[id]
		if !ok {
			continue
		}
		state.adjustment = utils.ClampInt(state.adjustment+seconds, c.cfg.AdjustClampMin, c.cfg.AdjustClampMax)
	}
}

// Step evaluates every intersection's phase transition once for this tick.
// When a green phase ends its adjustment term resets: extensions are
// one-shot, not cumulative across cycles.
func (c *LightController) Step(tick uint64) {
	for _, state := range c.states {
		if state.override != "" {
			continue // held for an emergency vehicle
		}
		kind, _ := state.phase(state.phaseIdx)
		duration := c.phaseDuration(state, kind)
		if tick-state.phaseStart < uint64(duration) {
			continue
		}
		if kind == phaseGreen {
			state.adjustment = 0
		}
		state.phaseIdx = (state.phaseIdx + 1) % state.phaseCount()
		state.phaseStart = tick
	}
}

func (c *LightController) phaseDuration(state *lightState, kind phaseKind) int {
	switch kind {
	case phaseGreen:
		return utils.ClampInt(c.cfg.GreenBaseTicks+state.adjustment, c.cfg.GreenMinTicks, c.cfg.GreenMaxTicks)
	case phaseYellow:
		return max(1, c.cfg.YellowTicks)
	default:
		return max(1, c.cfg.AllRedTicks)
	}
}

// Adjustment returns the current adjustment term for an intersection. The
// analyzer uses it to decide whether a reducing recommendation applies.
func (c *LightController) Adjustment(id domain.IntersectionID) int {
	if state, ok := c.states[id]; ok {
		return state.adjustment
	}
	return 0
}

// PhaseMap reports the colour shown to each lane group of an intersection.
func (c *LightController) PhaseMap(id domain.IntersectionID) map[string]string {
	state, ok := c.states[id]
	if !ok {
		return nil
	}

	phases := make(map[string]string, len(state.groups))
	for _, group := range state.groups {
		phases[group] = domain.LightRed.String()
	}
	if state.override != "" {
		phases[state.override] = domain.LightGreen.String()
		return phases
	}
	kind, active := state.phase(state.phaseIdx)
	switch kind {
	case phaseGreen:
		phases[active] = domain.LightGreen.String()
	case phaseYellow:
		phases[active] = domain.LightYellow.String()
	}
	return phases
}
