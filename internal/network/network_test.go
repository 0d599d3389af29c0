package network

import (
	"errors"
	"math"
	"testing"

	"github.com/smartcity/simulator/internal/domain"
)

// triangle builds a three-node network with a direct lane 0->2 and a detour
// 0->1->2.
func triangle(t *testing.T) *Network {
	t.Helper()
	net, err := Build(Topology{
		Intersections: []Intersection{
			{ID: 0, Row: 0, Col: 0},
			{ID: 1, Row: 0, Col: 1},
			{ID: 2, Row: 1, Col: 1},
		},
		Lanes: []laneSpec{
			{From: 0, To: 2, Capacity: 5},
			{From: 0, To: 1, Capacity: 5},
			{From: 1, To: 2, Capacity: 5},
		},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return net
}

func TestDefaultGridTopology(t *testing.T) {
	net, err := DefaultGrid(10)
	if err != nil {
		t.Fatalf("DefaultGrid failed: %v", err)
	}

	if got := len(net.Intersections()); got != 16 {
		t.Errorf("Expected 16 intersections, got %d", got)
	}
	// 24 orthogonal neighbour pairs, one lane each way.
	if got := len(net.Lanes()); got != 48 {
		t.Errorf("Expected 48 lanes, got %d", got)
	}
	if got := len(net.Entries()); got != 8 {
		t.Errorf("Expected 8 entry intersections, got %d", got)
	}
	if got := len(net.Exits()); got != 8 {
		t.Errorf("Expected 8 exit intersections, got %d", got)
	}

	// Corner node (0,0) has two neighbours, interior node (1,1) has four.
	if got := len(net.Outgoing(0)); got != 2 {
		t.Errorf("Expected 2 outgoing lanes at corner, got %d", got)
	}
	if got := len(net.Incoming(5)); got != 4 {
		t.Errorf("Expected 4 incoming lanes at interior node, got %d", got)
	}
}

func TestBuildRejectsInvalidTopologies(t *testing.T) {
	cases := []struct {
		name string
		topo Topology
	}{
		{
			name: "duplicate intersection",
			topo: Topology{Intersections: []Intersection{{ID: 1}, {ID: 1}}},
		},
		{
			name: "self loop",
			topo: Topology{
				Intersections: []Intersection{{ID: 1}},
				Lanes:         []laneSpec{{From: 1, To: 1, Capacity: 5}},
			},
		},
		{
			name: "zero capacity",
			topo: Topology{
				Intersections: []Intersection{{ID: 1}, {ID: 2}},
				Lanes:         []laneSpec{{From: 1, To: 2, Capacity: 0}},
			},
		},
		{
			name: "unknown endpoint",
			topo: Topology{
				Intersections: []Intersection{{ID: 1}},
				Lanes:         []laneSpec{{From: 1, To: 9, Capacity: 5}},
			},
		},
		{
			name: "duplicate lane",
			topo: Topology{
				Intersections: []Intersection{{ID: 1}, {ID: 2}},
				Lanes: []laneSpec{
					{From: 1, To: 2, Capacity: 5},
					{From: 1, To: 2, Capacity: 5},
				},
			},
		},
		{
			name: "entry cannot reach an exit",
			topo: Topology{
				Intersections: []Intersection{
					{ID: 1, IsEntry: true},
					{ID: 2, IsExit: true},
					{ID: 3},
				},
				Lanes: []laneSpec{{From: 2, To: 3, Capacity: 5}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Build(tc.topo); err == nil {
				t.Error("Expected a build error, got nil")
			}
		})
	}
}

// TestShortestPathPrefersCheaperDetour verifies weights steer routing: the
// direct lane costs 5, the two-hop detour costs 2.
func TestShortestPathPrefersCheaperDetour(t *testing.T) {
	net := triangle(t)
	direct, _ := net.LaneBetween(0, 2)

	weight := func(l Lane) float64 {
		if l.ID == direct.ID {
			return 5
		}
		return 1
	}

	route, err := net.ShortestPath(0, 2, weight)
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	if len(route) != 2 {
		t.Fatalf("Expected 2-lane detour, got %d lanes", len(route))
	}
	first, _ := net.LaneBetween(0, 1)
	second, _ := net.LaneBetween(1, 2)
	if route[0] != first.ID || route[1] != second.ID {
		t.Errorf("Expected route [%d %d], got %v", first.ID, second.ID, route)
	}
}

func TestShortestPathUnitWeight(t *testing.T) {
	net := triangle(t)
	route, err := net.ShortestPath(0, 2, UnitWeight)
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	if len(route) != 1 {
		t.Errorf("Expected the direct lane under unit weights, got %v", route)
	}
}

// TestShortestPathSkipsImpassable verifies +Inf lanes are excluded from the
// graph entirely.
func TestShortestPathSkipsImpassable(t *testing.T) {
	net := triangle(t)
	direct, _ := net.LaneBetween(0, 2)

	weight := func(l Lane) float64 {
		if l.ID == direct.ID {
			return math.Inf(1)
		}
		return 1
	}

	route, err := net.ShortestPath(0, 2, weight)
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	if len(route) != 2 {
		t.Errorf("Expected detour around impassable lane, got %v", route)
	}

	// Blocking everything leaves no path.
	if _, err := net.ShortestPath(0, 2, func(Lane) float64 { return math.Inf(1) }); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Expected ErrDisconnected, got %v", err)
	}
}

func TestShortestPathEdgeCases(t *testing.T) {
	net := triangle(t)

	route, err := net.ShortestPath(1, 1, UnitWeight)
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	if len(route) != 0 {
		t.Errorf("Expected empty route for identical endpoints, got %v", route)
	}

	// No reverse lanes exist, so 2 cannot reach 0.
	if _, err := net.ShortestPath(2, 0, UnitWeight); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Expected ErrDisconnected, got %v", err)
	}
	if _, err := net.ShortestPath(0, domain.IntersectionID(99), UnitWeight); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Expected ErrDisconnected for unknown destination, got %v", err)
	}
}

func TestBuildJSON(t *testing.T) {
	data := []byte(`{
		"intersections": [
			{"id": 0, "row": 0, "col": 0},
			{"id": 1, "row": 0, "col": 1}
		],
		"lanes": [{"from": 0, "to": 1, "capacity": 3}]
	}`)

	net, err := BuildJSON(data)
	if err != nil {
		t.Fatalf("BuildJSON failed: %v", err)
	}
	lane, ok := net.LaneBetween(0, 1)
	if !ok {
		t.Fatal("Expected lane 0->1")
	}
	if lane.Capacity != 3 {
		t.Errorf("Expected capacity 3, got %d", lane.Capacity)
	}
	if lane.Name != "(0,0)->(0,1)" {
		t.Errorf("Unexpected lane name %q", lane.Name)
	}

	if _, err := BuildJSON([]byte("{not json")); err == nil {
		t.Error("Expected an error for malformed JSON")
	}
}
