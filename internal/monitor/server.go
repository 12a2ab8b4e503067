// Package monitor serves a debug HTTP view of a fleet's coverage plans.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/coverage.planner/internal/fleet"
	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/httputil"
	"github.com/banshee-data/coverage.planner/internal/monitoring"
	"github.com/banshee-data/coverage.planner/internal/planner"
	"github.com/banshee-data/coverage.planner/internal/version"
)

// Server handles the HTTP interface for inspecting plans.
type Server struct {
	address string
	fleet   *fleet.Fleet
	server  *http.Server
}

// Config contains configuration options for the server.
type Config struct {
	Address string
	Fleet   *fleet.Fleet
}

// NewServer creates a server over cfg.Fleet.
func NewServer(cfg Config) *Server {
	s := &Server{address: cfg.Address, fleet: cfg.Fleet}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/robots", s.handleRobots)
	mux.HandleFunc("/api/plan", s.handlePlan)
	mux.HandleFunc("/debug/plan", s.handlePlanChart)
	mux.HandleFunc("/debug/grid.png", s.handleGridPNG)
	return mux
}

// Start serves until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "coverage",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RobotSummary is one entry of /api/robots.
type RobotSummary struct {
	ID        string        `json:"id"`
	TagID     int           `json:"tag_id"`
	Phase     planner.Phase `json:"phase"`
	Covered   int           `json:"covered"`
	Waypoints int           `json:"waypoints"`
	Exhausted bool          `json:"exhausted"`
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ids := s.fleet.IDs()
	out := make([]RobotSummary, 0, len(ids))
	for _, id := range ids {
		rb, ok := s.fleet.Get(id)
		if !ok {
			continue
		}
		sum := RobotSummary{ID: id, TagID: rb.TagID}
		_ = s.fleet.With(id, func(p *planner.Planner) error {
			e := p.Episode()
			sum.Phase, sum.Covered, sum.Waypoints, sum.Exhausted = e.Phase, e.Covered, e.Waypoints, e.Exhausted
			return nil
		})
		out = append(out, sum)
	}
	httputil.WriteJSONOK(w, out)
}

// PlanResponse is the body of /api/plan.
type PlanResponse struct {
	Robot     string             `json:"robot"`
	Rows      int                `json:"rows"`
	Cols      int                `json:"cols"`
	Episode   planner.Episode    `json:"episode"`
	Waypoints []planner.Waypoint `json:"waypoints"`
}

// snapshot copies what the handlers need out of robot id's planner.
type snapshot struct {
	grid      *grid.Grid
	episode   planner.Episode
	waypoints []planner.Waypoint
}

func (s *Server) snapshot(id string) (snapshot, error) {
	var snap snapshot
	err := s.fleet.With(id, func(p *planner.Planner) error {
		snap.grid = p.Grid().Clone()
		snap.episode = p.Episode()
		snap.waypoints = append([]planner.Waypoint{}, p.Path()...)
		return nil
	})
	return snap, err
}

// robotParam resolves the robot query parameter, or the marker tag given
// as tag, defaulting to the only robot of a single-robot fleet.
func (s *Server) robotParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query()
	id := q.Get("robot")
	if tag := q.Get("tag"); id == "" && tag != "" {
		n, err := strconv.Atoi(tag)
		if err != nil {
			httputil.BadRequest(w, "tag must be an integer")
			return "", false
		}
		robot, ok := s.fleet.ByTag(n)
		if !ok {
			httputil.NotFound(w, fmt.Sprintf("no robot with tag %d", n))
			return "", false
		}
		id = robot.ID
	}
	if id == "" {
		ids := s.fleet.IDs()
		if len(ids) != 1 {
			httputil.BadRequest(w, "robot parameter is required")
			return "", false
		}
		id = ids[0]
	}
	return id, true
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, ok := s.robotParam(w, r)
	if !ok {
		return
	}
	snap, err := s.snapshot(id)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, PlanResponse{
		Robot:     id,
		Rows:      snap.grid.Rows,
		Cols:      snap.grid.Cols,
		Episode:   snap.episode,
		Waypoints: snap.waypoints,
	})
}
