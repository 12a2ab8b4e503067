// Command coverage classifies a workspace image into an occupancy grid and
// plans a coverage path or a route through it for a robot.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/coverage.planner/internal/config"
	"github.com/banshee-data/coverage.planner/internal/db"
	"github.com/banshee-data/coverage.planner/internal/fleet"
	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/link"
	"github.com/banshee-data/coverage.planner/internal/monitor"
	"github.com/banshee-data/coverage.planner/internal/monitoring"
	"github.com/banshee-data/coverage.planner/internal/planner"
	"github.com/banshee-data/coverage.planner/internal/render"
	"github.com/banshee-data/coverage.planner/internal/security"
	"github.com/banshee-data/coverage.planner/internal/version"
	"github.com/banshee-data/coverage.planner/internal/vision"
)

var (
	configPath = flag.String("config", "", "Tuning config JSON (built-in defaults when empty)")
	imagePath  = flag.String("image", "", "Workspace image to classify")
	useCamera  = flag.Bool("camera", false, "Grab the workspace frame from the configured camera (needs -tags=opencv)")
	mode       = flag.String("mode", modeFull, "Planning mode: full, live or route")
	startFlag  = flag.String("start", "0,0", "Start cell as row,col")
	goalFlag   = flag.String("goal", "", "Goal cell as row,col (route mode)")
	yaw        = flag.Float64("yaw", 0, "Initial heading in radians (full mode)")
	strategy   = flag.String("strategy", "", "Override the configured strategy")
	robotID    = flag.String("robot", "robot-1", "Robot id")
	outPath    = flag.String("out", "", "Write a plot of the plan to this file (.png, .svg, .pdf)")
	jsonOut    = flag.Bool("json", false, "Print the waypoints as JSON on stdout")
	persist    = flag.Bool("persist", false, "Record the run in the configured database")
	dbPath     = flag.String("db", "", "Override the configured database path")
	useSerial  = flag.Bool("serial", false, "Stream waypoints to the robot over the configured serial port")
	portPath   = flag.String("port", "", "Override the configured serial port")
	serve      = flag.Bool("serve", false, "Serve the debug monitor until interrupted")
	listen     = flag.String("listen", "", "Override the configured listen address")
	progress   = flag.String("progress", "", "Write progress plots to this directory (live mode)")
	debug      = flag.Bool("debug", false, "Log planner diagnostics")
	trace      = flag.Bool("trace", false, "Log every planner step")
	showVer    = flag.Bool("version", false, "Print the version and exit")
	followerID = flag.String("follower", "", "Hand the lead robot's coverage to this robot and plan its pass (full mode)")
	listRuns   = flag.Bool("runs", false, "List the runs recorded in the database and exit")
	replayID   = flag.String("replay", "", "Load a recorded run and plot it to -out or print it with -json")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	for _, path := range []string{*outPath, *progress} {
		if path == "" {
			continue
		}
		if err := security.ValidateOutputPath(path); err != nil {
			log.Fatalf("invalid output path %q: %v", path, err)
		}
	}

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	setupLogging(*debug, *trace)

	if *listRuns || *replayID != "" {
		store := openStore(cfg)
		defer store.Close()
		if *listRuns {
			runs, err := store.ListRuns("", 0)
			if err != nil {
				log.Fatalf("failed to list runs: %v", err)
			}
			printRuns(os.Stdout, runs)
			return
		}
		run, g, wps, err := replay(store, *replayID, cfg.GetCellWidthPx(), cfg.GetCellHeightPx())
		if err != nil {
			log.Fatalf("failed to load run: %v", err)
		}
		monitoring.Logf("run %s: robot %s, %d waypoints", run.RunID, run.RobotID, len(wps))
		publish(g, wps)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frame, err := acquire(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to acquire frame: %v", err)
	}
	g, err := classify(cfg, frame)
	if err != nil {
		log.Fatalf("failed to classify frame: %v", err)
	}
	monitoring.Logf("classified %dx%d grid, %d open cells", g.Rows, g.Cols, len(g.OpenCells()))

	p, err := newPlanner(cfg, g, *strategy)
	if err != nil {
		log.Fatalf("failed to create planner: %v", err)
	}
	f := fleet.New()
	if err := f.Add(&fleet.Robot{ID: *robotID, TagID: 1, Planner: p}); err != nil {
		log.Fatalf("failed to register robot: %v", err)
	}
	if *followerID != "" {
		if *mode != modeFull {
			log.Fatal("-follower needs -mode full")
		}
		fp, err := newPlanner(cfg, g.Clone(), *strategy)
		if err != nil {
			log.Fatalf("failed to create follower planner: %v", err)
		}
		if err := f.Add(&fleet.Robot{ID: *followerID, TagID: 2, Planner: fp}); err != nil {
			log.Fatalf("failed to register follower: %v", err)
		}
	}

	out := &sink{uplink: link.NewDisabled()}
	if *persist {
		store := openStore(cfg)
		defer store.Close()
		out.store = store
	}
	if *useSerial {
		path := cfg.GetSerialPort()
		if *portPath != "" {
			path = *portPath
		}
		up, err := link.Open(path, link.PortOptions{BaudRate: cfg.GetSerialBaudRate()})
		if err != nil {
			log.Fatalf("failed to open serial link: %v", err)
		}
		defer up.Close()
		out.uplink = up
	}
	if err := out.begin(*robotID, p); err != nil {
		log.Fatalf("failed to record run: %v", err)
	}

	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}
	var wg sync.WaitGroup
	if *serve {
		srv := monitor.NewServer(monitor.Config{Address: addr, Fleet: f})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				log.Printf("monitor server: %v", err)
				stop()
			}
		}()
	}

	switch *mode {
	case modeFull, modeRoute:
		runOffline(f, out)
		if *followerID != "" {
			runFollower(f, out.store)
		}
	case modeLive:
		runLive(ctx, cfg, f, out)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	var ep planner.Episode
	_ = f.With(*robotID, func(p *planner.Planner) error {
		ep = p.Episode()
		return nil
	})
	if err := out.finish(ep); err != nil {
		log.Printf("failed to finish run: %v", err)
	}

	if *serve {
		monitoring.Logf("serving plan on %s; interrupt to exit", addr)
		<-ctx.Done()
	}
	stop()
	wg.Wait()
}

func setupLogging(debug, trace bool) {
	ops := monitoring.Writer{}
	var diag, steps io.Writer
	if debug {
		diag = monitoring.Writer{}
	}
	if trace {
		steps = monitoring.Writer{}
	}
	grid.SetLogWriters(ops, diag, steps)
	planner.SetLogWriters(ops, diag, steps)
	fleet.SetLogWriters(ops, diag, steps)
}

// acquire returns one binarised workspace frame from the camera or the
// image given with -image.
func acquire(ctx context.Context, cfg *config.TuningConfig) (*image.Gray, error) {
	threshold := uint8(cfg.GetThreshold())
	if *useCamera {
		src, err := vision.OpenCamera(cfg.GetCameraDevice(), threshold)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Next(ctx)
	}
	if *imagePath == "" {
		return nil, errors.New("one of -image or -camera is required")
	}
	return vision.LoadBinary(*imagePath, threshold)
}

func runOffline(f *fleet.Fleet, out *sink) {
	start, err := parsePoint(*startFlag)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	var goal grid.Point
	if *mode == modeRoute {
		if goal, err = parsePoint(*goalFlag); err != nil {
			log.Fatalf("invalid -goal: %v", err)
		}
	}

	var (
		wps []planner.Waypoint
		g   *grid.Grid
	)
	err = f.With(*robotID, func(p *planner.Planner) error {
		var err error
		wps, err = plan(p, *mode, start, goal, *yaw)
		g = p.Grid()
		return err
	})
	if err != nil {
		log.Fatalf("planning failed: %v", err)
	}
	monitoring.Logf("planned %d waypoints", len(wps))

	if err := out.emit(wps); err != nil {
		log.Fatalf("failed to publish plan: %v", err)
	}
	publish(g, wps)
}

// publish plots wps over g to -out and prints them with -json.
func publish(g *grid.Grid, wps []planner.Waypoint) {
	if *outPath != "" {
		if err := render.SavePlan(*outPath, g, wps); err != nil {
			log.Fatalf("failed to plot plan: %v", err)
		}
		monitoring.Logf("wrote plan plot to %s", *outPath)
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(wps); err != nil {
			log.Fatalf("failed to encode waypoints: %v", err)
		}
	}
}

// runFollower plans the follower's pass over the lead robot's coverage and
// records it as a run of its own.
func runFollower(f *fleet.Fleet, store *db.DB) {
	start, err := parsePoint(*startFlag)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	wps, err := follow(f, *robotID, *followerID, start, *yaw)
	if err != nil {
		log.Fatalf("follower planning failed: %v", err)
	}
	monitoring.Logf("follower %s planned %d waypoints over %s's coverage", *followerID, len(wps), *robotID)

	out := &sink{store: store}
	err = f.With(*followerID, func(p *planner.Planner) error {
		if err := out.begin(*followerID, p); err != nil {
			return err
		}
		if err := out.emit(wps); err != nil {
			return err
		}
		return out.finish(p.Episode())
	})
	if err != nil {
		log.Fatalf("failed to record follower run: %v", err)
	}
}

// openStore opens the configured database, or the one named with -db.
func openStore(cfg *config.TuningConfig) *db.DB {
	path := cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	store, err := db.NewDB(path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return store
}

func runLive(ctx context.Context, cfg *config.TuningConfig, f *fleet.Fleet, out *sink) {
	if !*useSerial {
		log.Fatal("live mode needs -serial for robot poses")
	}
	proj, err := projector(cfg)
	if err != nil {
		log.Fatalf("failed to build projector: %v", err)
	}
	if *progress != "" {
		out.progress = render.NewProgressPlotter()
		if err := out.progress.Start(*progress); err != nil {
			log.Fatalf("failed to start progress plots: %v", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := out.uplink.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial link: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if err := live(ctx, f, *robotID, proj, link.Poses(ctx, out.uplink), out); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("live coverage stopped: %v", err)
	}

	if out.progress != nil {
		out.progress.Stop()
		if n, err := out.progress.GeneratePlots(); err != nil {
			log.Printf("failed to write progress plots: %v", err)
		} else {
			monitoring.Logf("wrote %d progress plots to %s", n, *progress)
		}
	}
	out.uplink.Close()
	wg.Wait()
}
