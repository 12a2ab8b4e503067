package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/planner"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Run is one coverage episode of one robot.
type Run struct {
	RunID      string
	RobotID    string
	Strategy   string
	Rows, Cols int
	// Grid is the map the run started on, in fixture notation.
	Grid       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Covered    int
	Exhausted  bool
}

// CreateRun records a new run for robot on g and returns it with its id.
func (db *DB) CreateRun(robotID string, strategy planner.Strategy, g *grid.Grid) (*Run, error) {
	r := &Run{
		RunID:     uuid.NewString(),
		RobotID:   robotID,
		Strategy:  strategy.String(),
		Rows:      g.Rows,
		Cols:      g.Cols,
		Grid:      grid.Format(g),
		StartedAt: db.clock.Now(),
	}
	_, err := db.Exec(`
		INSERT INTO runs (run_id, robot_id, strategy, grid_rows, grid_cols, grid_text, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.RobotID, r.Strategy, r.Rows, r.Cols, r.Grid, r.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return r, nil
}

// AppendWaypoints stores wps under run id in one transaction. Waypoints are
// keyed by sequence number, so re-sending one is a no-op.
func (db *DB) AppendWaypoints(runID string, wps []planner.Waypoint) error {
	if len(wps) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO waypoints (run_id, seq, cell_row, cell_col, x, y, pixel_x, pixel_y, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare waypoint insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range wps {
		if _, err := stmt.Exec(runID, w.Seq, w.Cell.Row, w.Cell.Col, w.X, w.Y, w.PixelX, w.PixelY, w.Kind.String()); err != nil {
			return fmt.Errorf("failed to insert waypoint %d: %w", w.Seq, err)
		}
	}
	return tx.Commit()
}

// FinishRun stamps the run with its final episode state.
func (db *DB) FinishRun(runID string, ep planner.Episode) error {
	res, err := db.Exec(`
		UPDATE runs SET finished_at = ?, covered = ?, exhausted = ? WHERE run_id = ?`,
		db.clock.Now(), ep.Covered, ep.Exhausted, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, robot_id, strategy, grid_rows, grid_cols, grid_text, started_at, finished_at, covered, exhausted
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns the most recent runs of robot, newest first. An empty
// robot id lists every robot's runs.
func (db *DB) ListRuns(robotID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT run_id, robot_id, strategy, grid_rows, grid_cols, grid_text, started_at, finished_at, covered, exhausted
		FROM runs WHERE (? = '' OR robot_id = ?)
		ORDER BY started_at DESC LIMIT ?`, robotID, robotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	if err := s.Scan(&r.RunID, &r.RobotID, &r.Strategy, &r.Rows, &r.Cols, &r.Grid, &r.StartedAt, &finished, &r.Covered, &r.Exhausted); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// Waypoints returns the stored waypoints of run id in sequence order.
func (db *DB) Waypoints(runID string) ([]planner.Waypoint, error) {
	rows, err := db.Query(`
		SELECT seq, cell_row, cell_col, x, y, pixel_x, pixel_y, kind
		FROM waypoints WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []planner.Waypoint
	for rows.Next() {
		var (
			w    planner.Waypoint
			kind string
		)
		if err := rows.Scan(&w.Seq, &w.Cell.Row, &w.Cell.Col, &w.X, &w.Y, &w.PixelX, &w.PixelY, &kind); err != nil {
			return nil, err
		}
		if w.Kind, err = planner.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", w.Seq, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
