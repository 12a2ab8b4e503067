// Package render draws grids and plans with gonum/plot.
package render

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/planner"
)

// Default output size of a plan plot.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var (
	obstacleColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	pathColor     = color.RGBA{R: 30, G: 110, B: 200, A: 255}
	transitColor  = color.RGBA{R: 220, G: 120, B: 20, A: 255}
	startColor    = color.RGBA{R: 20, G: 160, B: 60, A: 255}
)

// centre returns the plot coordinate of p: columns along x, rows along y
// with row 0 at the top.
func centre(g *grid.Grid, p grid.Point) plotter.XY {
	return plotter.XY{X: float64(p.Col) + 0.5, Y: float64(g.Rows-p.Row) - 0.5}
}

// Plan returns a plot of g's obstacles and the waypoint path through it.
func Plan(g *grid.Grid, wps []planner.Waypoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Coverage plan (%dx%d cells, %d waypoints)", g.Rows, g.Cols, len(wps))
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row (from bottom)"
	p.X.Min, p.X.Max = 0, float64(g.Cols)
	p.Y.Min, p.Y.Max = 0, float64(g.Rows)

	var blocked plotter.XYs
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if pt := (grid.Point{Row: r, Col: c}); !g.Open(pt) {
				blocked = append(blocked, centre(g, pt))
			}
		}
	}
	if len(blocked) > 0 {
		s, err := plotter.NewScatter(blocked)
		if err != nil {
			return nil, fmt.Errorf("obstacles: %w", err)
		}
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		s.GlyphStyle.Color = obstacleColor
		s.GlyphStyle.Radius = vg.Points(6)
		p.Add(s)
		p.Legend.Add("obstacle", s)
	}

	if len(wps) == 0 {
		return p, nil
	}

	route := make(plotter.XYs, len(wps))
	var transit plotter.XYs
	for i, w := range wps {
		route[i] = centre(g, w.Cell)
		if w.Kind == planner.Transit {
			transit = append(transit, route[i])
		}
	}
	line, err := plotter.NewLine(route)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	line.Color = pathColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("path", line)

	if len(transit) > 0 {
		s, err := plotter.NewScatter(transit)
		if err != nil {
			return nil, fmt.Errorf("transit: %w", err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Color = transitColor
		p.Add(s)
		p.Legend.Add("transit", s)
	}

	start, err := plotter.NewScatter(route[:1])
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	start.GlyphStyle.Shape = draw.TriangleGlyph{}
	start.GlyphStyle.Color = startColor
	start.GlyphStyle.Radius = vg.Points(5)
	p.Add(start)
	p.Legend.Add("start", start)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders the plan as a PNG to w.
func WritePNG(w io.Writer, g *grid.Grid, wps []planner.Waypoint) error {
	p, err := Plan(g, wps)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePlan renders the plan to path. The format follows the file
// extension (png, svg, pdf, ...).
func SavePlan(path string, g *grid.Grid, wps []planner.Waypoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	p, err := Plan(g, wps)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
