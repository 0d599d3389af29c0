package network

import "github.com/smartcity/simulator/internal/domain"

// gridFlags marks which nodes of the default city grid admit and discharge
// traffic. Interior intersections are pure transit nodes.
var gridFlags = map[[2]int]struct{ entry, exit bool }{
	{0, 0}: {true, false},
	{0, 1}: {false, true},
	{0, 2}: {true, false},
	{0, 3}: {false, true},
	{1, 0}: {true, true},
	{1, 3}: {true, true},
	{2, 0}: {true, true},
	{2, 3}: {true, true},
	{3, 0}: {false, true},
	{3, 1}: {false, true},
	{3, 2}: {true, false},
	{3, 3}: {true, false},
}

// DefaultGrid builds the standard 4x4 city grid: orthogonal neighbours
// connected by one lane per direction, all with the same capacity.
func DefaultGrid(capacity int) (*Network, error) {
	const size = 4
	var topo Topology

	id := func(row, col int) domain.IntersectionID {
		return domain.IntersectionID(row*size + col)
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			flags := gridFlags[[2]int{row, col}]
			topo.Intersections = append(topo.Intersections, Intersection{
				ID:      id(row, col),
				Row:     row,
				Col:     col,
				IsEntry: flags.entry,
				IsExit:  flags.exit,
			})
		}
	}

	addPair := func(a, b domain.IntersectionID) {
		topo.Lanes = append(topo.Lanes,
			laneSpec{From: a, To: b, Capacity: capacity},
			laneSpec{From: b, To: a, Capacity: capacity},
		)
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size-1; col++ {
			addPair(id(row, col), id(row, col+1))
		}
	}
	for col := 0; col < size; col++ {
		for row := 0; row < size-1; row++ {
			addPair(id(row, col), id(row+1, col))
		}
	}

	return Build(topo)
}
