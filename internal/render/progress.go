package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/coverage.planner/internal/planner"
	"github.com/banshee-data/coverage.planner/internal/security"
)

// ProgressSample is one robot's episode state at one control tick.
type ProgressSample struct {
	Tick      int
	Covered   int
	Waypoints int
	Stack     int
	Phase     planner.Phase
}

// ProgressPlotter records per-robot coverage progress over control ticks
// and plots it after a run.
type ProgressPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	tick      int
	samples   map[string][]ProgressSample
}

// NewProgressPlotter returns a disabled plotter; call Start to record.
func NewProgressPlotter() *ProgressPlotter {
	return &ProgressPlotter{samples: make(map[string][]ProgressSample)}
}

// Start creates outputDir and begins a new recording.
func (pp *ProgressPlotter) Start(outputDir string) error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	pp.outputDir = outputDir
	pp.enabled = true
	pp.tick = 0
	pp.samples = make(map[string][]ProgressSample)
	return nil
}

// Stop disables sampling. Call GeneratePlots to write the output.
func (pp *ProgressPlotter) Stop() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.enabled = false
}

// IsEnabled reports whether the plotter is recording.
func (pp *ProgressPlotter) IsEnabled() bool {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.enabled
}

// IncrementTick marks the start of a new control tick.
func (pp *ProgressPlotter) IncrementTick() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.tick++
}

// Sample records robot id's episode at the current tick.
func (pp *ProgressPlotter) Sample(id string, ep planner.Episode) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if !pp.enabled {
		return
	}
	pp.samples[id] = append(pp.samples[id], ProgressSample{
		Tick:      pp.tick,
		Covered:   ep.Covered,
		Waypoints: ep.Waypoints,
		Stack:     len(ep.Stack),
		Phase:     ep.Phase,
	})
}

// SampleCount returns the number of samples recorded.
func (pp *ProgressPlotter) SampleCount() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	n := 0
	for _, s := range pp.samples {
		n += len(s)
	}
	return n
}

// GeneratePlots writes one PNG per robot to the output directory and
// returns the number written.
func (pp *ProgressPlotter) GeneratePlots() (int, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.outputDir == "" {
		return 0, fmt.Errorf("plotter was never started")
	}
	ids := make([]string, 0, len(pp.samples))
	for id := range pp.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	count := 0
	for _, id := range ids {
		if err := pp.generateRobotPlot(id, pp.samples[id]); err != nil {
			return count, fmt.Errorf("robot %s: %w", id, err)
		}
		count++
	}
	return count, nil
}

func (pp *ProgressPlotter) generateRobotPlot(id string, samples []ProgressSample) error {
	if len(samples) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Robot %s - coverage progress", id)
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Cells"

	covered := make(plotter.XYs, len(samples))
	waypoints := make(plotter.XYs, len(samples))
	stack := make(plotter.XYs, len(samples))
	for i, s := range samples {
		x := float64(s.Tick)
		covered[i] = plotter.XY{X: x, Y: float64(s.Covered)}
		waypoints[i] = plotter.XY{X: x, Y: float64(s.Waypoints)}
		stack[i] = plotter.XY{X: x, Y: float64(s.Stack)}
	}

	series := []struct {
		name string
		pts  plotter.XYs
		col  color.Color
	}{
		{"covered", covered, pathColor},
		{"waypoints", waypoints, transitColor},
		{"stack depth", stack, startColor},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return err
		}
		line.Color = s.col
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	file := filepath.Join(pp.outputDir, "progress_"+security.SanitizeFilename(id)+".png")
	if err := p.Save(10*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	return nil
}
