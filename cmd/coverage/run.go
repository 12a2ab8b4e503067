package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/banshee-data/coverage.planner/internal/config"
	"github.com/banshee-data/coverage.planner/internal/db"
	"github.com/banshee-data/coverage.planner/internal/fleet"
	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/link"
	"github.com/banshee-data/coverage.planner/internal/monitoring"
	"github.com/banshee-data/coverage.planner/internal/planner"
	"github.com/banshee-data/coverage.planner/internal/render"
	"github.com/banshee-data/coverage.planner/internal/transform"
)

// Planning modes selected with -mode.
const (
	modeFull  = "full"
	modeLive  = "live"
	modeRoute = "route"
)

// parsePoint reads a cell given as "row,col".
func parsePoint(s string) (grid.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return grid.Point{}, fmt.Errorf("cell %q: want row,col", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return grid.Point{}, fmt.Errorf("cell %q: %w", s, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return grid.Point{}, fmt.Errorf("cell %q: %w", s, err)
	}
	return grid.Point{Row: row, Col: col}, nil
}

// classify turns a binarised frame into a grid using cfg's cell geometry.
func classify(cfg *config.TuningConfig, frame *image.Gray) (*grid.Grid, error) {
	c := &grid.Classifier{
		CellWidth:     cfg.GetCellWidthPx(),
		CellHeight:    cfg.GetCellHeightPx(),
		ObstacleRatio: cfg.GetObstacleRatio(),
		ExcludeBorder: cfg.GetExcludeBorder(),
	}
	return c.Classify(frame, nil)
}

// projector maps frame pixels to metres. With calibration pairs configured
// it is the homography fitted to them; otherwise a uniform scale with the
// origin at the top-left pixel and world y pointing up the frame.
func projector(cfg *config.TuningConfig) (transform.Projection, error) {
	pairs := cfg.GetCalibration()
	if len(pairs) == 0 {
		return transform.Scale{MetersPerPixel: cfg.GetMetersPerPixel(), Origin: orb.Point{0, 0}, FlipY: true}, nil
	}
	src := make([]orb.Point, len(pairs))
	dst := make([]orb.Point, len(pairs))
	for i, cp := range pairs {
		src[i] = orb.Point(cp.Pixel)
		dst[i] = orb.Point(cp.World)
	}
	h, err := transform.EstimateHomography(src, dst)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	return h, nil
}

// cellOf returns the cell containing the world position of pose.
func cellOf(g *grid.Grid, proj transform.Projection, pose planner.Pose) (grid.Point, bool) {
	if !pose.Finite() {
		return grid.Point{}, false
	}
	px, py := proj.WorldToPixel(pose.X, pose.Y)
	if math.IsNaN(px) || math.IsNaN(py) || math.IsInf(px, 0) || math.IsInf(py, 0) {
		return grid.Point{}, false
	}
	p := grid.Point{
		Row: int(math.Floor(py / float64(g.CellHeight))),
		Col: int(math.Floor(px / float64(g.CellWidth))),
	}
	return p, g.InBounds(p)
}

// newPlanner builds the planner for g from cfg, with strategy overriding
// the configured one when set.
func newPlanner(cfg *config.TuningConfig, g *grid.Grid, strategy string) (*planner.Planner, error) {
	if strategy == "" {
		strategy = cfg.GetStrategy()
	}
	s, err := planner.ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	proj, err := projector(cfg)
	if err != nil {
		return nil, err
	}
	return planner.New(g, proj, planner.Options{ReachDistance: cfg.GetReachDistance(), Strategy: s})
}

// plan runs a full-coverage or route request on p.
func plan(p *planner.Planner, mode string, start, goal grid.Point, yaw float64) ([]planner.Waypoint, error) {
	switch mode {
	case modeFull:
		return p.Cover(start, planner.Pose{Yaw: yaw})
	case modeRoute:
		return p.Route(start, goal)
	}
	return nil, fmt.Errorf("mode %q does not plan offline", mode)
}

// sink forwards newly planned waypoints to whichever outputs are enabled.
type sink struct {
	store    *db.DB
	runID    string
	uplink   link.Interface
	progress *render.ProgressPlotter
}

func (s *sink) begin(robotID string, p *planner.Planner) error {
	if s.store == nil {
		return nil
	}
	run, err := s.store.CreateRun(robotID, p.Options().Strategy, p.Grid())
	if err != nil {
		return err
	}
	s.runID = run.RunID
	monitoring.Logf("recording run %s for robot %s", run.RunID, robotID)
	return nil
}

func (s *sink) emit(wps []planner.Waypoint) error {
	if len(wps) == 0 {
		return nil
	}
	if s.uplink != nil {
		if err := s.uplink.SendWaypoints(wps); err != nil {
			return fmt.Errorf("uplink: %w", err)
		}
	}
	if s.store != nil && s.runID != "" {
		if err := s.store.AppendWaypoints(s.runID, wps); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	return nil
}

func (s *sink) finish(ep planner.Episode) error {
	if s.store == nil || s.runID == "" {
		return nil
	}
	return s.store.FinishRun(s.runID, ep)
}

// live drives robot id from reported poses until its episode is exhausted,
// ctx is done or the pose stream ends.
func live(ctx context.Context, f *fleet.Fleet, id string, proj transform.Projection, poses <-chan planner.Pose, out *sink) error {
	r, ok := f.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", fleet.ErrUnknownRobot, id)
	}
	g := r.Planner.Grid()
	for {
		var pose planner.Pose
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-poses:
			if !ok {
				return nil
			}
			pose = p
		}

		cell, found := cellOf(g, proj, pose)
		res, err := f.Tick(ctx, map[string]planner.Observation{id: {Cell: cell, Found: found, Pose: pose}})
		if err != nil {
			return err
		}
		step := res[id]
		if step.Err != nil {
			monitoring.Logf("robot %s: %v", id, step.Err)
			continue
		}
		if err := out.emit(step.Added); err != nil {
			return err
		}
		if out.progress != nil {
			out.progress.IncrementTick()
			_ = f.With(id, func(p *planner.Planner) error {
				out.progress.Sample(id, p.Episode())
				return nil
			})
		}
		if step.Outcome == planner.Exhausted {
			monitoring.Logf("robot %s: coverage complete", id)
			return nil
		}
	}
}

// follow hands lead's coverage to follower and plans the follower's pass
// over it, starting from start.
func follow(f *fleet.Fleet, lead, follower string, start grid.Point, yaw float64) ([]planner.Waypoint, error) {
	if err := f.Handoff(lead, follower); err != nil {
		return nil, err
	}
	var wps []planner.Waypoint
	err := f.With(follower, func(p *planner.Planner) error {
		var err error
		wps, err = p.Cover(start, planner.Pose{Yaw: yaw})
		return err
	})
	return wps, err
}

// replay loads a stored run with its grid and waypoints.
func replay(store *db.DB, runID string, cellWidth, cellHeight int) (*db.Run, *grid.Grid, []planner.Waypoint, error) {
	run, err := store.GetRun(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := grid.Parse(strings.Split(run.Grid, "\n"), cellWidth, cellHeight)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("run %s grid: %w", runID, err)
	}
	wps, err := store.Waypoints(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	return run, g, wps, nil
}

// printRuns writes one line per run, newest first.
func printRuns(w io.Writer, runs []*db.Run) {
	fmt.Fprintf(w, "%-36s  %-12s  %-17s  %-7s  %-20s  %s\n", "RUN", "ROBOT", "STRATEGY", "GRID", "STARTED", "COVERED")
	for _, r := range runs {
		covered := fmt.Sprintf("%d", r.Covered)
		if r.Exhausted {
			covered += " (done)"
		}
		fmt.Fprintf(w, "%-36s  %-12s  %-17s  %-7s  %-20s  %s\n",
			r.RunID, r.RobotID, r.Strategy, fmt.Sprintf("%dx%d", r.Rows, r.Cols),
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"), covered)
	}
}
