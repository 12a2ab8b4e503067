package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/heading"
	"github.com/banshee-data/coverage.planner/internal/pathfind"
)

var (
	// ErrNotLocalized is returned when the robot's cell is unknown.
	ErrNotLocalized = errors.New("robot not localized")
	// ErrUnreachable is returned when no path joins the requested cells.
	ErrUnreachable = pathfind.ErrUnreachable
)

// DefaultReachDistance is the world distance within which the robot counts
// as having reached a waypoint.
const DefaultReachDistance = 0.1

// Options tune a Planner.
type Options struct {
	// ReachDistance gates Step: the robot must be at most this far from the
	// last waypoint before another cell is committed.
	ReachDistance float64
	Strategy      Strategy
}

// DefaultOptions returns wall-follow coverage with DefaultReachDistance.
func DefaultOptions() Options {
	return Options{ReachDistance: DefaultReachDistance, Strategy: WallFollow}
}

// Validate reports the first invalid option.
func (o Options) Validate() error {
	if o.ReachDistance < 0 || math.IsNaN(o.ReachDistance) {
		return fmt.Errorf("reach distance must be non-negative, got %v", o.ReachDistance)
	}
	if _, ok := strategyNames[o.Strategy]; !ok {
		return fmt.Errorf("unknown strategy %v", o.Strategy)
	}
	return nil
}

type episode struct {
	phase      Phase
	root       grid.Point
	goal       grid.Point
	hasGoal    bool
	stack      []grid.Point
	incumbents []grid.Point
	waypoints  []Waypoint
	covered    int
	exhausted  bool
	noPath     bool

	// last is the most recent cell the robot was seen in.
	last      grid.Point
	localized bool
}

// Planner covers one grid for one robot. It is not safe for concurrent use.
type Planner struct {
	grid *grid.Grid
	// base is the grid as handed to the planner; Reset restores it.
	base *grid.Grid
	// scratch receives the copies that searches are allowed to mutate.
	scratch *grid.Grid

	proj Projector
	opts Options
	ep   episode
}

// New returns a planner over g. The planner mutates g as it covers it. A nil
// proj leaves waypoints in pixel coordinates.
func New(g *grid.Grid, proj Projector, opts Options) (*Planner, error) {
	if g == nil {
		return nil, errors.New("planner needs a grid")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if proj == nil {
		proj = Identity
	}
	p := &Planner{proj: proj, opts: opts}
	p.load(g)
	return p, nil
}

func (p *Planner) load(g *grid.Grid) {
	p.grid = g
	p.base = g.Clone()
	p.scratch = g.Clone()
	p.ep = episode{}
}

// SetGrid replaces the planner's grid, typically with a map handed over by
// another robot, and discards the current episode.
func (p *Planner) SetGrid(g *grid.Grid) error {
	if g == nil {
		return errors.New("planner needs a grid")
	}
	p.load(g)
	diagf("loaded %dx%d grid with %d open cells", g.Rows, g.Cols, len(g.OpenCells()))
	return nil
}

// Reset discards the episode and restores the grid to the state it had when
// it was handed to the planner.
func (p *Planner) Reset() {
	if err := p.grid.CopyFrom(p.base); err != nil {
		// Only reachable if the caller resized the grid under us.
		opsf("reset: %v; keeping current grid", err)
		p.load(p.grid)
		return
	}
	p.ep = episode{}
}

// Grid returns the grid being covered.
func (p *Planner) Grid() *grid.Grid { return p.grid }

// Options returns the options the planner was built with.
func (p *Planner) Options() Options { return p.opts }

// Phase returns the current episode phase.
func (p *Planner) Phase() Phase { return p.ep.phase }

// Exhausted reports whether every reachable cell has been covered.
func (p *Planner) Exhausted() bool { return p.ep.exhausted }

// Path returns the waypoints emitted so far. The slice is append-only for
// the life of the episode; callers must not modify it.
func (p *Planner) Path() []Waypoint {
	return p.ep.waypoints[:len(p.ep.waypoints):len(p.ep.waypoints)]
}

// Since returns the waypoints emitted after the first n.
func (p *Planner) Since(n int) []Waypoint {
	if n < 0 {
		n = 0
	}
	if n >= len(p.ep.waypoints) {
		return nil
	}
	return p.Path()[n:]
}

// Target returns the cell the robot is expected to be in before the next
// cell is committed.
func (p *Planner) Target() (grid.Point, bool) {
	if len(p.ep.stack) == 0 {
		return grid.Point{}, false
	}
	return p.ep.stack[len(p.ep.stack)-1], true
}

// Episode returns a snapshot of the episode state.
func (p *Planner) Episode() Episode {
	e := Episode{
		Phase:      p.ep.phase,
		Root:       p.ep.root,
		Stack:      append([]grid.Point{}, p.ep.stack...),
		Incumbents: append([]grid.Point{}, p.ep.incumbents...),
		Waypoints:  len(p.ep.waypoints),
		Covered:    p.ep.covered,
		Exhausted:  p.ep.exhausted,
		NoPath:     p.ep.noPath,
	}
	if p.ep.hasGoal {
		g := p.ep.goal
		e.Goal = &g
	}
	return e
}

// Cover starts a new episode at start and runs it to exhaustion. pose.Yaw
// fixes the initial direction of travel.
func (p *Planner) Cover(start grid.Point, pose Pose) ([]Waypoint, error) {
	p.Reset()
	if err := p.seed(start, pose.Yaw); err != nil {
		return nil, err
	}
	for p.advance() {
	}
	diagf("covered %d cells with %d waypoints from %v", p.ep.covered, len(p.ep.waypoints), start)
	return p.Path(), nil
}

// Step advances the episode by at most one committed cell. The first call
// after construction or Reset seeds the episode at the robot's cell and
// explores nothing. Later calls commit a cell only when the robot is in the
// cell at the top of the stack and within ReachDistance of the last
// waypoint; otherwise they return Waiting.
//
// An observation without a cell falls back to the last cell the robot was
// seen in. ErrNotLocalized is returned when there is none.
func (p *Planner) Step(obs Observation) (Outcome, error) {
	cell := obs.Cell
	switch {
	case obs.Found && p.grid.InBounds(cell):
		p.ep.last, p.ep.localized = cell, true
	case p.ep.localized:
		cell = p.ep.last
	default:
		return Waiting, ErrNotLocalized
	}

	if p.ep.exhausted {
		return Exhausted, nil
	}
	if p.ep.phase == Inactive {
		if err := p.seed(cell, obs.Pose.Yaw); err != nil {
			return Waiting, err
		}
		return Seeded, nil
	}

	if !obs.Pose.Finite() {
		diagf("waiting: pose %+v is not finite", obs.Pose)
		return Waiting, nil
	}
	top, _ := p.Target()
	if cell != top {
		diagf("waiting: robot in %v, target %v", cell, top)
		return Waiting, nil
	}
	last := p.ep.waypoints[len(p.ep.waypoints)-1]
	if d := math.Hypot(obs.Pose.X-last.X, obs.Pose.Y-last.Y); !(d <= p.opts.ReachDistance) {
		diagf("waiting: robot %.3f from waypoint %d (reach %.3f)", d, last.Seq, p.opts.ReachDistance)
		return Waiting, nil
	}
	if p.advance() {
		return Advanced, nil
	}
	return Exhausted, nil
}

// Route appends the shortest path from start to goal to the plan. Every cell
// after start is emitted as Transit except the goal itself. The search runs
// on a copy of the grid as handed to the planner, so coverage state neither
// helps nor hinders it. Once a goal has proved unreachable Route refuses to
// search again until Reset.
func (p *Planner) Route(start, goal grid.Point) ([]Waypoint, error) {
	if p.ep.noPath {
		return nil, fmt.Errorf("%w: no path since last reset", ErrUnreachable)
	}
	if !p.grid.InBounds(start) {
		return nil, fmt.Errorf("%w: start %v outside grid", ErrNotLocalized, start)
	}
	if err := p.scratch.CopyFrom(p.base); err != nil {
		return nil, err
	}
	path, err := pathfind.ShortestPath(p.scratch, start, goal)
	if err != nil {
		if errors.Is(err, ErrUnreachable) {
			p.ep.noPath = true
			opsf("route %v -> %v: %v", start, goal, err)
		}
		return nil, err
	}
	p.ep.goal, p.ep.hasGoal = goal, true

	n := len(p.ep.waypoints)
	if len(path) == 1 {
		p.emit(goal, Cover)
	}
	for i, c := range path[1:] {
		kind := Transit
		if i == len(path)-2 {
			kind = Cover
		}
		p.emit(c, kind)
	}
	diagf("routed %v -> %v in %d cells", start, goal, len(path))
	return p.ep.waypoints[n:len(p.ep.waypoints):len(p.ep.waypoints)], nil
}

// seed starts an episode with start as the root.
func (p *Planner) seed(start grid.Point, yaw float64) error {
	if !p.grid.InBounds(start) {
		return fmt.Errorf("%w: start %v outside %dx%d grid", ErrNotLocalized, start, p.grid.Rows, p.grid.Cols)
	}
	if !p.grid.Open(start) {
		opsf("seeding on closed cell %v", start)
	}
	c := p.grid.At(start)
	c.Visited = true
	c.Steps = 1
	c.Parent = p.grid.Sentinel()
	c.Arrival = heading.ArrivalFromYaw(yaw)
	c.Wall = heading.NoWall

	p.ep.phase = Spiral
	p.ep.root = start
	p.ep.covered = 1
	p.ep.stack = append(p.ep.stack[:0], start)
	p.ep.incumbents = p.ep.incumbents[:0]
	p.emit(start, Cover)
	diagf("seeded at %v travelling %s (%s)", start, c.Arrival, p.opts.Strategy)
	return nil
}

func (p *Planner) emit(c grid.Point, k Kind) {
	px, py := p.grid.Centroid(c)
	x, y := p.proj.PixelToWorld(float64(px), float64(py))
	p.ep.waypoints = append(p.ep.waypoints, Waypoint{
		Seq:    len(p.ep.waypoints),
		Cell:   c,
		X:      x,
		Y:      y,
		PixelX: px,
		PixelY: py,
		Kind:   k,
	})
}
