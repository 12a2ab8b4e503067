package planner

import (
	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/heading"
	"github.com/banshee-data/coverage.planner/internal/pathfind"
)

// globalOrder is the neighbour order of GlobalPreference, indexed by
// Cell.NextNeighbor.
var globalOrder = [4]heading.Direction{heading.North, heading.East, heading.West, heading.South}

// move is a candidate commit from the top of the stack.
type move struct {
	to   grid.Point
	dir  heading.Direction // direction of travel into to
	wall heading.Relative  // wall reference to store on to
}

// advance unwinds the stack until one cell is committed and reports whether
// that happened. When the stack empties the episode is exhausted.
func (p *Planner) advance() bool {
	for len(p.ep.stack) > 0 {
		top := p.ep.stack[len(p.ep.stack)-1]
		if m, ok := p.choose(top); ok {
			p.commit(top, m)
			return true
		}

		p.ep.incumbents = append(p.ep.incumbents, top)
		p.ep.stack = p.ep.stack[:len(p.ep.stack)-1]
		p.ep.phase = Return
		if n := len(p.ep.stack); n > 0 && p.opts.Strategy != GlobalPreference {
			// Turn around on the way back.
			p.grid.At(p.ep.stack[n-1]).Wall = heading.Back
		}
		tracef("dead end at %v, %d cells on stack", top, len(p.ep.stack))
	}
	if !p.ep.exhausted {
		diagf("exhausted after %d cells", p.ep.covered)
	}
	p.ep.exhausted = true
	return false
}

// choose picks the next cell to commit from top, if any is open.
func (p *Planner) choose(top grid.Point) (move, bool) {
	c := p.grid.At(top)
	if p.opts.Strategy == GlobalPreference {
		return p.chooseGlobal(top, c)
	}

	if c.Wall == heading.Back {
		c.Arrival = c.Arrival.Opposite()
		c.Wall = heading.NoWall
	}
	if c.Wall != heading.NoWall {
		to := top.Move(heading.Neighbor(c.Arrival, c.Wall))
		if !p.grid.Blocked(to) {
			return move{to: to, dir: heading.Turn(c.Arrival, c.Wall), wall: heading.NoWall}, true
		}
	}
	for _, r := range heading.SearchOrder {
		to := top.Move(heading.Neighbor(c.Arrival, r))
		if p.grid.Blocked(to) {
			continue
		}
		m := move{to: to, dir: heading.Turn(c.Arrival, r), wall: heading.NoWall}
		if p.opts.Strategy == WallFollow && (r == heading.Right || r == heading.Left) {
			m.wall = r
		}
		return m, true
	}
	return move{}, false
}

func (p *Planner) chooseGlobal(top grid.Point, c *grid.Cell) (move, bool) {
	for c.NextNeighbor < len(globalOrder) {
		d := globalOrder[c.NextNeighbor]
		c.NextNeighbor++
		if to := top.Move(heading.Step(d)); !p.grid.Blocked(to) {
			return move{to: to, dir: d, wall: heading.NoWall}, true
		}
	}
	return move{}, false
}

// commit marks m.to covered, pushes it and emits its waypoint, preceded by
// the reconnecting path when the stack had to unwind to reach it.
func (p *Planner) commit(from grid.Point, m move) {
	if len(p.ep.incumbents) > 0 {
		p.reconnect(m.to)
	}

	c := p.grid.At(m.to)
	c.Visited = true
	p.ep.covered++
	c.Steps = p.ep.covered
	c.Parent = from
	c.Arrival = m.dir
	c.Wall = m.wall

	p.ep.stack = append(p.ep.stack, m.to)
	p.ep.phase = Spiral
	p.emit(m.to, Cover)
	tracef("commit %v from %v travelling %s (wall %s)", m.to, from, m.dir, m.wall)
}

// reconnect emits Transit waypoints along the shortest path over covered
// cells from the first dead end to the cell about to be committed.
func (p *Planner) reconnect(to grid.Point) {
	from := p.ep.incumbents[0]
	p.ep.incumbents = p.ep.incumbents[:0]

	path, err := p.bridge(from, to)
	if err != nil {
		opsf("reconnect %v -> %v: %v", from, to, err)
		return
	}
	for _, c := range path[1 : len(path)-1] {
		p.emit(c, Transit)
	}
	diagf("reconnected %v -> %v over %d covered cells", from, to, len(path)-2)
}

// bridge searches the scratch grid, in which only the cells covered during
// this episode and the target are open.
func (p *Planner) bridge(from, to grid.Point) ([]grid.Point, error) {
	if err := grid.InvertInto(p.scratch, p.grid); err != nil {
		return nil, err
	}
	if err := p.scratch.Exclude(p.base); err != nil {
		return nil, err
	}
	p.scratch.Release(p.ep.root)
	p.scratch.Release(to)
	return pathfind.ShortestPath(p.scratch, from, to)
}
