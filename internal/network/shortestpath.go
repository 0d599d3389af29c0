package network

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/smartcity/simulator/internal/domain"
)

// WeightFunc assigns a traversal cost to a lane for one shortest-path query.
// Returning +Inf marks the lane impassable (blocked or excluded).
type WeightFunc func(Lane) float64

// UnitWeight costs every lane the same; shortest path by hop count.
func UnitWeight(Lane) float64 { return 1 }

// ShortestPath returns the least-weight lane sequence from origin to dest
// under the supplied weight function. The weight function is evaluated once
// per lane per call, so callers can bake in live congestion.
func (n *Network) ShortestPath(origin, dest domain.IntersectionID, weight WeightFunc) ([]domain.LaneID, error) {
	if _, ok := n.byID[origin]; !ok {
		return nil, ErrDisconnected
	}
	if _, ok := n.byID[dest]; !ok {
		return nil, ErrDisconnected
	}
	if origin == dest {
		return []domain.LaneID{}, nil
	}

	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for _, in := range n.intersections {
		g.AddNode(simple.Node(in.ID))
	}
	for _, lane := range n.lanes {
		w := weight(lane)
		if math.IsInf(w, 1) {
			continue // impassable this query
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(lane.From), simple.Node(lane.To), w))
	}

	shortest := path.DijkstraFrom(g.Node(int64(origin)), g)
	nodes, dist := shortest.To(int64(dest))
	if len(nodes) < 2 || math.IsInf(dist, 1) {
		return nil, ErrDisconnected
	}

	route := make([]domain.LaneID, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		lane, ok := n.LaneBetween(domain.IntersectionID(nodes[i].ID()), domain.IntersectionID(nodes[i+1].ID()))
		if !ok {
			return nil, ErrDisconnected
		}
		route = append(route, lane.ID)
	}
	return route, nil
}
