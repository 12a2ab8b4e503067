package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/monitoring"
	"github.com/banshee-data/coverage.planner/internal/planner"
	"github.com/banshee-data/coverage.planner/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "coverage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func plan(t *testing.T) (*grid.Grid, *planner.Planner, []planner.Waypoint) {
	t.Helper()
	g := grid.MustParse([]string{"....", ".##.", "...."}, 10, 10)
	p, err := planner.New(g, nil, planner.DefaultOptions())
	require.NoError(t, err)
	wps, err := p.Cover(grid.Point{}, planner.Pose{})
	require.NoError(t, err)
	return g, p, wps
}

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestNewDB_Migrates(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Idempotent.
	require.NoError(t, db.MigrateUp(Migrations()))
}

func TestMigrateDownAndTo(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown(Migrations()))
	version, _, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, db.MigrateTo(Migrations(), 2))
	version, _, err = db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenDB_Unmigrated(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)
	g, p, wps := plan(t)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	db.SetClock(clock)

	run, err := db.CreateRun("r1", planner.WallFollow, g)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)

	// Stream in two batches with an overlap.
	require.NoError(t, db.AppendWaypoints(run.RunID, wps[:5]))
	require.NoError(t, db.AppendWaypoints(run.RunID, wps[3:]))
	require.NoError(t, db.AppendWaypoints(run.RunID, nil))

	got, err := db.Waypoints(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(wps, got); diff != "" {
		t.Errorf("stored waypoints differ (-want +got):\n%s", diff)
	}

	clock.Advance(3 * time.Minute)
	require.NoError(t, db.FinishRun(run.RunID, p.Episode()))
	stored, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "r1", stored.RobotID)
	assert.Equal(t, "wall_follow", stored.Strategy)
	assert.Equal(t, 3, stored.Rows)
	assert.Equal(t, 4, stored.Cols)
	assert.Equal(t, "....\n.##.\n....", stored.Grid)
	assert.Equal(t, 10, stored.Covered)
	assert.True(t, stored.Exhausted)
	assert.True(t, start.Equal(stored.StartedAt), "started %v", stored.StartedAt)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, 3*time.Minute, stored.FinishedAt.Sub(stored.StartedAt))
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun("missing", planner.Episode{}), ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	db := newTestDB(t)
	g, _, _ := plan(t)
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	db.SetClock(clock)

	var ids []string
	for _, robot := range []string{"a", "b", "a"} {
		run, err := db.CreateRun(robot, planner.LocalPreference, g)
		require.NoError(t, err)
		ids = append(ids, run.RunID)
		clock.Advance(time.Minute)
	}

	all, err := db.ListRuns("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	a, err := db.ListRuns("a", 10)
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, ids[2], a[0].RunID, "newest first")
	assert.Equal(t, ids[0], a[1].RunID)
	for _, r := range a {
		assert.Equal(t, "a", r.RobotID)
		assert.Nil(t, r.FinishedAt)
	}

	one, err := db.ListRuns("", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
