// Package network holds the static road graph: intersections connected by
// directed lanes with bounded vehicle capacity. The topology is immutable
// after Build; live state (occupancy, blockage) lives in the simulation layer
// and reaches this package only through weight functions at query time.
package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smartcity/simulator/internal/domain"
)

// ErrDisconnected is returned when no path exists between two intersections.
var ErrDisconnected = errors.New("network: no path between intersections")

// Intersection is a node in the road graph. Row/Col place it on the city grid
// and determine the axis lane-grouping used by the traffic light controller.
type Intersection struct {
	ID      domain.IntersectionID `json:"id"`
	Row     int                   `json:"row"`
	Col     int                   `json:"col"`
	IsEntry bool                  `json:"is_entry"`
	IsExit  bool                  `json:"is_exit"`

	Incoming []domain.LaneID `json:"-"`
	Outgoing []domain.LaneID `json:"-"`
}

// Lane is a directed edge between two intersections with a fixed capacity of
// concurrently present vehicles.
type Lane struct {
	ID       domain.LaneID         `json:"id"`
	Name     string                `json:"name"`
	From     domain.IntersectionID `json:"from"`
	To       domain.IntersectionID `json:"to"`
	Capacity int                   `json:"capacity"`
}

// Topology is the serialisable input representation of a road network.
type Topology struct {
	Intersections []Intersection `json:"intersections"`
	Lanes         []laneSpec     `json:"lanes"`
}

type laneSpec struct {
	From     domain.IntersectionID `json:"from"`
	To       domain.IntersectionID `json:"to"`
	Capacity int                   `json:"capacity"`
}

// Network is the immutable road graph arena. Cross-references between
// intersections and lanes are integer ids, never pointers.
type Network struct {
	intersections []Intersection
	lanes         []Lane

	byID     map[domain.IntersectionID]int // id -> index in intersections
	byLane   map[domain.LaneID]int         // id -> index in lanes
	laneFrom map[domain.IntersectionID]map[domain.IntersectionID]domain.LaneID
}

// Build constructs a Network from a topology, validating every reference.
// Errors here are configuration errors and abort startup.
func Build(topo Topology) (*Network, error) {
	n := &Network{
		byID:     make(map[domain.IntersectionID]int, len(topo.Intersections)),
		byLane:   make(map[domain.LaneID]int),
		laneFrom: make(map[domain.IntersectionID]map[domain.IntersectionID]domain.LaneID),
	}

	for _, in := range topo.Intersections {
		if _, dup := n.byID[in.ID]; dup {
			return nil, fmt.Errorf("network: duplicate intersection %d", in.ID)
		}
		in.Incoming = nil
		in.Outgoing = nil
		n.byID[in.ID] = len(n.intersections)
		n.intersections = append(n.intersections, in)
	}

	for _, ls := range topo.Lanes {
		if ls.Capacity < 1 {
			return nil, fmt.Errorf("network: lane %d->%d has capacity %d", ls.From, ls.To, ls.Capacity)
		}
		if ls.From == ls.To {
			return nil, fmt.Errorf("network: lane %d->%d is a self loop", ls.From, ls.To)
		}
		fi, ok := n.byID[ls.From]
		if !ok {
			return nil, fmt.Errorf("network: lane references unknown intersection %d", ls.From)
		}
		ti, ok := n.byID[ls.To]
		if !ok {
			return nil, fmt.Errorf("network: lane references unknown intersection %d", ls.To)
		}
		if _, dup := n.laneFrom[ls.From][ls.To]; dup {
			return nil, fmt.Errorf("network: duplicate lane %d->%d", ls.From, ls.To)
		}

		id := domain.LaneID(len(n.lanes))
		lane := Lane{
			ID:       id,
			Name:     fmt.Sprintf("(%d,%d)->(%d,%d)", n.intersections[fi].Row, n.intersections[fi].Col, n.intersections[ti].Row, n.intersections[ti].Col),
			From:     ls.From,
			To:       ls.To,
			Capacity: ls.Capacity,
		}
		n.byLane[id] = len(n.lanes)
		n.lanes = append(n.lanes, lane)

		n.intersections[fi].Outgoing = append(n.intersections[fi].Outgoing, id)
		n.intersections[ti].Incoming = append(n.intersections[ti].Incoming, id)
		if n.laneFrom[ls.From] == nil {
			n.laneFrom[ls.From] = make(map[domain.IntersectionID]domain.LaneID)
		}
		n.laneFrom[ls.From][ls.To] = id
	}

	if err := n.checkReachability(); err != nil {
		return nil, err
	}
	return n, nil
}

// BuildJSON constructs a Network from a JSON-encoded topology.
func BuildJSON(data []byte) (*Network, error) {
	var topo Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("network: invalid topology JSON: %w", err)
	}
	return Build(topo)
}

// checkReachability verifies every entry intersection reaches at least one
// exit under unit weights. An unreachable entry is a configuration error.
func (n *Network) checkReachability() error {
	unit := func(Lane) float64 { return 1 }
	for _, in := range n.intersections {
		if !in.IsEntry {
			continue
		}
		reachesExit := false
		for _, out := range n.intersections {
			if !out.IsExit || out.ID == in.ID {
				continue
			}
			if _, err := n.ShortestPath(in.ID, out.ID, unit); err == nil {
				reachesExit = true
				break
			}
		}
		if !reachesExit {
			return fmt.Errorf("network: entry intersection %d cannot reach any exit", in.ID)
		}
	}
	return nil
}

// Intersection looks up an intersection by id.
func (n *Network) Intersection(id domain.IntersectionID) (Intersection, bool) {
	i, ok := n.byID[id]
	if !ok {
		return Intersection{}, false
	}
	return n.intersections[i], true
}

// Lane looks up a lane by id.
func (n *Network) Lane(id domain.LaneID) (Lane, bool) {
	i, ok := n.byLane[id]
	if !ok {
		return Lane{}, false
	}
	return n.lanes[i], true
}

// LaneBetween returns the directed lane from one intersection to another.
func (n *Network) LaneBetween(from, to domain.IntersectionID) (Lane, bool) {
	if m, ok := n.laneFrom[from]; ok {
		if id, ok := m[to]; ok {
			return n.lanes[n.byLane[id]], true
		}
	}
	return Lane{}, false
}

// Outgoing returns every lane leaving the intersection.
func (n *Network) Outgoing(id domain.IntersectionID) []Lane {
	in, ok := n.Intersection(id)
	if !ok {
		return nil
	}
	lanes := make([]Lane, 0, len(in.Outgoing))
	for _, lid := range in.Outgoing {
		lanes = append(lanes, n.lanes[n.byLane[lid]])
	}
	return lanes
}

// Incoming returns every lane arriving at the intersection.
func (n *Network) Incoming(id domain.IntersectionID) []Lane {
	in, ok := n.Intersection(id)
	if !ok {
		return nil
	}
	lanes := make([]Lane, 0, len(in.Incoming))
	for _, lid := range in.Incoming {
		lanes = append(lanes, n.lanes[n.byLane[lid]])
	}
	return lanes
}

// Intersections returns all intersections in arena order.
func (n *Network) Intersections() []Intersection { return n.intersections }

// Lanes returns all lanes in arena order.
func (n *Network) Lanes() []Lane { return n.lanes }

// Entries returns the ids of all entry intersections.
func (n *Network) Entries() []domain.IntersectionID {
	var ids []domain.IntersectionID
	for _, in := range n.intersections {
		if in.IsEntry {
			ids = append(ids, in.ID)
		}
	}
	return ids
}

// Exits returns the ids of all exit intersections.
func (n *Network) Exits() []domain.IntersectionID {
	var ids []domain.IntersectionID
	for _, in := range n.intersections {
		if in.IsExit {
			ids = append(ids, in.ID)
		}
	}
	return ids
}
