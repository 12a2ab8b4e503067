// Package pathfind resolves shortest 4-connected paths over an occupancy grid.
package pathfind

import (
	"errors"
	"fmt"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/heading"
)

// ErrUnreachable is returned when the search exhausts the grid without
// reaching the goal.
var ErrUnreachable = errors.New("goal unreachable")

// ShortestPath runs a breadth-first search on g from start to goal and
// returns the cells of the path, both ends included. Neighbours are expanded
// up, right, down, left, which fixes the choice between equal-length paths.
//
// The search marks every cell it reaches as visited, records its distance
// from start (1 at start) in Steps and the cell it came from in Parent.
// Cells already visited are never entered, so callers that need g unchanged
// must search on a copy.
func ShortestPath(g *grid.Grid, start, goal grid.Point) ([]grid.Point, error) {
	if !g.InBounds(start) {
		return nil, fmt.Errorf("start %v outside %dx%d grid", start, g.Rows, g.Cols)
	}
	root := g.At(start)
	root.Visited = true
	root.Steps = 1
	root.Parent = g.Sentinel()
	if start == goal {
		return []grid.Point{start}, nil
	}
	if !g.InBounds(goal) {
		return nil, fmt.Errorf("%w: goal %v outside grid", ErrUnreachable, goal)
	}

	queue := make([]grid.Point, 0, g.Rows*g.Cols)
	queue = append(queue, start)
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		steps := g.At(cur).Steps
		for _, d := range heading.Directions {
			next := cur.Move(heading.Step(d))
			if g.Blocked(next) {
				continue
			}
			cell := g.At(next)
			cell.Visited = true
			cell.Steps = steps + 1
			cell.Parent = cur
			if next == goal {
				return trace(g, goal), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%w: %v from %v", ErrUnreachable, goal, start)
}

// trace follows parents back from goal to the search root.
func trace(g *grid.Grid, goal grid.Point) []grid.Point {
	path := make([]grid.Point, g.At(goal).Steps)
	p := goal
	for i := len(path) - 1; i >= 0; i-- {
		path[i] = p
		p = g.At(p).Parent
	}
	return path
}

// Connected reports whether consecutive cells of path are 4-neighbours.
func Connected(path []grid.Point) bool {
	for i := 1; i < len(path); i++ {
		if _, ok := heading.Between(path[i].Row-path[i-1].Row, path[i].Col-path[i-1].Col); !ok {
			return false
		}
	}
	return true
}
