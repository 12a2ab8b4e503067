// Package fleet keeps one coverage planner per robot and drives them
// together.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/planner"
)

// ErrUnknownRobot is returned for ids that were never added.
var ErrUnknownRobot = errors.New("unknown robot")

// Robot is one member of the fleet.
type Robot struct {
	ID string
	// TagID is the fiducial marker the vision pipeline reports the robot by.
	TagID   int
	Planner *planner.Planner
}

// Result is the outcome of one robot's step during a Tick.
type Result struct {
	Outcome planner.Outcome
	// Added holds the waypoints appended by this step.
	Added []planner.Waypoint
	Err   error
}

// Fleet is a registry of robots. Registry operations are safe for
// concurrent use; each robot's planner is stepped by at most one goroutine
// at a time.
type Fleet struct {
	mu     sync.Mutex
	robots map[string]*Robot
	// busy serialises steps per robot.
	busy map[string]*sync.Mutex
}

// New returns an empty fleet.
func New() *Fleet {
	return &Fleet{robots: make(map[string]*Robot), busy: make(map[string]*sync.Mutex)}
}

// Add registers r. Ids and tags must be unique.
func (f *Fleet) Add(r *Robot) error {
	if r == nil || r.ID == "" {
		return errors.New("robot needs an id")
	}
	if r.Planner == nil {
		return fmt.Errorf("robot %s has no planner", r.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.robots[r.ID]; ok {
		return fmt.Errorf("robot %s already registered", r.ID)
	}
	for _, o := range f.robots {
		if o.TagID == r.TagID {
			return fmt.Errorf("tag %d already used by robot %s", r.TagID, o.ID)
		}
	}
	f.robots[r.ID] = r
	f.busy[r.ID] = &sync.Mutex{}
	diagf("registered robot %s (tag %d)", r.ID, r.TagID)
	return nil
}

// Get returns the robot with the given id.
func (f *Fleet) Get(id string) (*Robot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.robots[id]
	return r, ok
}

// ByTag returns the robot carrying marker tag.
func (f *Fleet) ByTag(tag int) (*Robot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.robots {
		if r.TagID == tag {
			return r, true
		}
	}
	return nil, false
}

// IDs returns the registered ids in sorted order.
func (f *Fleet) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.robots))
	for id := range f.robots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *Fleet) lookup(id string) (*Robot, *sync.Mutex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.robots[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownRobot, id)
	}
	return r, f.busy[id], nil
}

// With runs fn on robot id's planner while holding its step lock, so fn
// sees a consistent episode.
func (f *Fleet) With(id string, fn func(*planner.Planner) error) error {
	r, mu, err := f.lookup(id)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return fn(r.Planner)
}

// Handoff gives robot to the inverse of robot from's map: the cells from has
// covered become to's working region and everything else is closed. to's
// episode is discarded.
func (f *Fleet) Handoff(from, to string) error {
	if from == to {
		return fmt.Errorf("cannot hand robot %s its own map", from)
	}
	src, srcMu, err := f.lookup(from)
	if err != nil {
		return err
	}
	dst, dstMu, err := f.lookup(to)
	if err != nil {
		return err
	}

	srcMu.Lock()
	inv := grid.Invert(src.Planner.Grid())
	srcMu.Unlock()

	dstMu.Lock()
	defer dstMu.Unlock()
	if err := dst.Planner.SetGrid(inv); err != nil {
		return fmt.Errorf("handoff %s -> %s: %w", from, to, err)
	}
	diagf("handed %s's map to %s: %d cells open", from, to, len(inv.OpenCells()))
	return nil
}

// Tick steps every robot that has an observation, concurrently. Per-robot
// planner errors are reported in the results; the returned error is only
// set for unknown ids or a cancelled context.
func (f *Fleet) Tick(ctx context.Context, obs map[string]planner.Observation) (map[string]Result, error) {
	type job struct {
		id    string
		robot *Robot
		mu    *sync.Mutex
	}
	jobs := make([]job, 0, len(obs))
	for id := range obs {
		r, mu, err := f.lookup(id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job{id: id, robot: r, mu: mu})
	}

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			j.mu.Lock()
			defer j.mu.Unlock()

			before := len(j.robot.Planner.Path())
			out, err := j.robot.Planner.Step(obs[j.id])
			if err != nil {
				opsf("robot %s: %v", j.id, err)
			}
			results[i] = Result{Outcome: out, Added: j.robot.Planner.Since(before), Err: err}
			tracef("robot %s: %s (+%d waypoints)", j.id, out, len(results[i].Added))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Result, len(jobs))
	for i, j := range jobs {
		out[j.id] = results[i]
	}
	return out, nil
}
