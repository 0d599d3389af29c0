package domain

import "time"

// LightColor is the signal shown to a lane group at an intersection.
type LightColor int

const (
	LightRed LightColor = iota
	LightYellow
	LightGreen
)

func (c LightColor) String() string {
	switch c {
	case LightGreen:
		return "green"
	case LightYellow:
		return "yellow"
	default:
		return "red"
	}
}

// AccidentRecord blocks a lane between StartTick and ClearTick. A lane has at
// most one active record; vehicles already on the lane are held, new entries
// are rejected until ClearTick.
type AccidentRecord struct {
	Lane      LaneID `json:"lane_id"`
	Severity  int    `json:"severity"` // 1..5
	StartTick uint64 `json:"start_tick"`
	ClearTick uint64 `json:"clear_tick"`
}

// Active reports whether the lane is still blocked at the given tick.
func (a AccidentRecord) Active(tick uint64) bool { return tick < a.ClearTick }

// Recommendation is a flow-analyzer suggestion to change an intersection's
// green duration. It is advisory and consumed within the tick it is produced.
type Recommendation struct {
	Intersection IntersectionID
	AddSeconds   int // signed; clamped by the controller
	Tick         uint64
}

// LightAdjustment is the inbound control command consumed from the message
// bus or the HTTP API. Negative values shorten the green phase.
type LightAdjustment struct {
	IntersectionID  int `json:"intersection_id"`
	AddSecondsGreen int `json:"add_seconds_green"`
}

// IntersectionSnapshot is the per-intersection slice of a TrafficUpdate.
type IntersectionSnapshot struct {
	ID              IntersectionID     `json:"id"`
	PhasePerGroup   map[string]string  `json:"phase_per_group"`
	OccupancyByLane map[LaneID]int     `json:"occupancy_by_lane"`
	WaitingByLane   map[LaneID]float64 `json:"waiting_time_by_lane"`
	Congestion      float64            `json:"congestion"`
}

// LanePrediction is the analyzer's near-future occupancy estimate for a lane.
type LanePrediction struct {
	Lane               LaneID  `json:"lane_id"`
	PredictedOccupancy float64 `json:"predicted_occupancy"`
}

// TrafficUpdate is the telemetry snapshot published once per tick.
type TrafficUpdate struct {
	Tick          uint64                 `json:"tick"`
	TotalVehicles int                    `json:"total_vehicles"`
	Intersections []IntersectionSnapshot `json:"intersections"`
	Accidents     []AccidentRecord       `json:"accidents"`
	Predictions   []LanePrediction       `json:"predictions"`
	Timestamp     time.Time              `json:"timestamp"`
}

// CongestionAlert flags a heavily congested lane or intersection.
type CongestionAlert struct {
	Intersection *IntersectionID `json:"intersection,omitempty"`
	Lane         *LaneID         `json:"lane,omitempty"`
	Message      string          `json:"message"`
	Action       string          `json:"recommended_action"`
	Tick         uint64          `json:"tick"`
}
