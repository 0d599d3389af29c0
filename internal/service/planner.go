package service

import (
	"errors"
	"log"
	"math"

	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/network"
)

// RoutePlanner computes least-weight routes over the road network using live
// congestion. The same origin/destination pair can yield different routes
// across ticks as occupancy shifts.
type RoutePlanner struct {
	net       *network.Network
	lanes     map[domain.LaneID]*laneState
	threshold float64 // occupancy ratio above which a lane is avoided on replans
	maxFails  int
}

func NewRoutePlanner(net *network.Network, lanes map[domain.LaneID]*laneState, threshold float64, maxFails int) *RoutePlanner {
	return &RoutePlanner{net: net, lanes: lanes, threshold: threshold, maxFails: maxFails}
}

// congestionWeight is the default weight: 1 + occupancy/capacity, so busier
// lanes cost more. Blocked lanes are impassable.
func (p *RoutePlanner) congestionWeight(tick uint64) network.WeightFunc {
	return func(l network.Lane) float64 {
		ls := p.lanes[l.ID]
		if ls.blocked(tick) {
			return math.Inf(1)
		}
		return 1 + ls.occupancyRatio()
	}
}

// avoidanceWeight additionally rules out lanes over the congestion threshold.
// Used for replans so the new route dodges the trouble that triggered it.
func (p *RoutePlanner) avoidanceWeight(tick uint64) network.WeightFunc {
	base := p.congestionWeight(tick)
	return func(l network.Lane) float64 {
		if p.lanes[l.ID].occupancyRatio() > p.threshold {
			return math.Inf(1)
		}
		return base(l)
	}
}

// Plan computes an initial route between two intersections.
func (p *RoutePlanner) Plan(origin, dest domain.IntersectionID, tick uint64) ([]domain.LaneID, error) {
	return p.net.ShortestPath(origin, dest, p.congestionWeight(tick))
}

// Replan recomputes the vehicle's route from its current position, avoiding
// blocked and congested lanes. The route is replaced wholesale on success.
// After maxFails consecutive failures the vehicle is Stuck; that is reported,
// never fatal.
func (p *RoutePlanner) Replan(v *domain.Vehicle, tick uint64, reason string) bool {
	lane, ok := p.net.Lane(v.CurrentLane)
	if !ok {
		panic("replan: vehicle on unknown lane")
	}

	v.Status = domain.StatusRecalculating
	route, err := p.net.ShortestPath(lane.To, v.Destination, p.avoidanceWeight(tick))
	if err != nil {
		if !errors.Is(err, network.ErrDisconnected) {
			log.Printf("planner: replan vehicle %s: %v", v.ID, err)
		}
		v.ReplanFailures++
		if v.ReplanFailures >= p.maxFails {
			v.Status = domain.StatusStuck
			log.Printf("planner: vehicle %s stuck after %d failed replans (%s)", v.ID, v.ReplanFailures, reason)
		}
		return false
	}

	v.Route = route
	v.ReplanFailures = 0
	v.Status = domain.StatusWaiting
	return true
}
