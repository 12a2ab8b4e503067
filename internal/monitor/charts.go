package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/coverage.planner/internal/grid"
	"github.com/banshee-data/coverage.planner/internal/httputil"
	"github.com/banshee-data/coverage.planner/internal/planner"
	"github.com/banshee-data/coverage.planner/internal/render"
)

// echartsAssetsPrefix is where the chart pages load the echarts bundle from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handlePlanChart renders the plan of one robot as an HTML scatter/line
// chart in grid coordinates.
// Query params:
//   - robot (optional for a single-robot fleet)
func (s *Server) handlePlanChart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.robotParam(w, r)
	if !ok {
		return
	}
	snap, err := s.snapshot(id)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := planChart(id, snap).Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// chartY puts row 0 at the top of the chart.
func chartY(g *grid.Grid, row int) int { return g.Rows - 1 - row }

func planChart(id string, snap snapshot) *charts.Scatter {
	g := snap.grid
	var obstacles, transit []opts.ScatterData
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if !g.Open(grid.Point{Row: r, Col: c}) {
				obstacles = append(obstacles, opts.ScatterData{Value: []interface{}{c, chartY(g, r)}})
			}
		}
	}
	xs := make([]interface{}, len(snap.waypoints))
	path := make([]opts.LineData, len(snap.waypoints))
	for i, wp := range snap.waypoints {
		xs[i] = wp.Cell.Col
		path[i] = opts.LineData{Value: []interface{}{wp.Cell.Col, chartY(g, wp.Cell.Row)}, Name: fmt.Sprintf("#%d %s", wp.Seq, wp.Kind)}
		if wp.Kind == planner.Transit {
			transit = append(transit, opts.ScatterData{Value: []interface{}{wp.Cell.Col, chartY(g, wp.Cell.Row)}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Coverage plan", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Coverage plan", Subtitle: fmt.Sprintf("robot=%s phase=%s covered=%d waypoints=%d", id, snap.episode.Phase, snap.episode.Covered, len(snap.waypoints))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: -1, Max: g.Cols, Name: "col", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: -1, Max: g.Rows, Name: "row (from bottom)"}),
	)
	scatter.AddSeries("obstacle", obstacles, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
	scatter.AddSeries("transit", transit, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	line := charts.NewLine()
	line.SetXAxis(xs).AddSeries("path", path, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	scatter.Overlap(line)
	return scatter
}

// handleGridPNG renders the plan of one robot as a PNG.
func (s *Server) handleGridPNG(w http.ResponseWriter, r *http.Request) {
	id, ok := s.robotParam(w, r)
	if !ok {
		return
	}
	snap, err := s.snapshot(id)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, snap.grid, snap.waypoints); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
