package domain

import "github.com/google/uuid"

// IntersectionID identifies an intersection node in the road network.
type IntersectionID int

// LaneID identifies a directed lane in the road network.
type LaneID int

// VehicleType is a closed set of vehicle kinds, each with fixed behavioural
// constants. Movement logic switches on the tag.
type VehicleType int

const (
	VehicleCar VehicleType = iota
	VehicleBus
	VehicleTruck
	VehicleEmergencyVan
)

func (t VehicleType) String() string {
	switch t {
	case VehicleCar:
		return "car"
	case VehicleBus:
		return "bus"
	case VehicleTruck:
		return "truck"
	case VehicleEmergencyVan:
		return "emergency_van"
	default:
		return "unknown"
	}
}

// SpeedFactor is the base-speed multiplier for the vehicle type.
func (t VehicleType) SpeedFactor() float64 {
	switch t {
	case VehicleBus:
		return 0.8
	case VehicleTruck:
		return 0.7
	case VehicleEmergencyVan:
		return 1.3
	default:
		return 1.0
	}
}

// IsEmergency reports whether the type has priority at traffic lights.
func (t VehicleType) IsEmergency() bool { return t == VehicleEmergencyVan }

// VehicleStatus is the lifecycle state of a vehicle.
type VehicleStatus int

const (
	StatusSpawning VehicleStatus = iota
	StatusMoving
	StatusWaiting
	StatusCrashed
	StatusRecalculating
	StatusArrived
	StatusStuck
)

func (s VehicleStatus) String() string {
	switch s {
	case StatusSpawning:
		return "spawning"
	case StatusMoving:
		return "moving"
	case StatusWaiting:
		return "waiting"
	case StatusCrashed:
		return "crashed"
	case StatusRecalculating:
		return "recalculating"
	case StatusArrived:
		return "arrived"
	case StatusStuck:
		return "stuck"
	default:
		return "unknown"
	}
}

// Terminal reports whether the vehicle leaves the registry in this state.
func (s VehicleStatus) Terminal() bool {
	return s == StatusArrived || s == StatusStuck
}

// Vehicle is a live participant in the simulation. It is created by the
// registry on spawn and mutated only by the registry and the accident model.
//
// Exactly one of (CurrentLane valid, Status == StatusArrived) holds at a time.
// Route is the ordered sequence of lanes still ahead of the vehicle; it is
// replaced wholesale on replanning, never edited in place.
type Vehicle struct {
	ID          uuid.UUID
	Type        VehicleType
	Origin      IntersectionID
	Destination IntersectionID

	CurrentLane LaneID
	Route       []LaneID
	Status      VehicleStatus

	WaitTicks      int     // consecutive ticks spent waiting, reset on movement
	ReplanFailures int     // consecutive failed replans, reset on success
	Progress       float64 // accrued speed credit; one full unit buys a lane advance
	SpawnedAtTick  uint64
}

// NextLane returns the lane the vehicle wants to enter next and whether one
// remains on the route.
func (v *Vehicle) NextLane() (LaneID, bool) {
	if len(v.Route) == 0 {
		return 0, false
	}
	return v.Route[0], true
}

// AdvanceReady accrues the type's speed credit and reports whether a full
// unit is available to spend on a lane change. Credit accrues only while
// below one unit, so waiting at a light never banks extra moves; the caller
// deducts the unit when the vehicle actually advances.
func (v *Vehicle) AdvanceReady() bool {
	if v.Progress < 1 {
		v.Progress += v.Type.SpeedFactor()
	}
	return v.Progress >= 1
}
