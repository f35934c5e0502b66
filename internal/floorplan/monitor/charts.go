package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/httputil"
)

const (
	defaultChartPoints = 8000
	echartsAssetsHost  = "https://go-echarts.github.io/go-echarts-assets/assets/"
)

// handleWallsChart renders an HTML scatter of a stored run: the slice points
// (downsampled by stride) and one series holding every wall endpoint.
// Query params:
//   - run_id (required)
//   - max_points (optional; default 8000)
func (s *Server) handleWallsChart(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		httputil.BadRequest(w, "missing 'run_id' parameter")
		return
	}
	maxPoints := defaultChartPoints
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v >= 100 && v <= 50000 {
			maxPoints = v
		}
	}

	r.SetPathValue("id", runID)
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	chart := wallsChart(run.RunID, run.Plan, maxPoints)
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

// wallsChart builds the scatter with square, equal-range axes so the plan
// keeps its proportions.
func wallsChart(runID string, plan *floorplan.FloorPlan, maxPoints int) *charts.Scatter {
	stride := 1
	if len(plan.Points2D) > maxPoints {
		stride = int(math.Ceil(float64(len(plan.Points2D)) / float64(maxPoints)))
	}
	points := make([]opts.ScatterData, 0, len(plan.Points2D)/stride+1)
	for i := 0; i < len(plan.Points2D); i += stride {
		p := plan.Points2D[i]
		points = append(points, opts.ScatterData{Value: []float64{p.X, p.Y}})
	}
	endpoints := make([]opts.ScatterData, 0, 2*len(plan.Walls))
	for i, wall := range plan.Walls {
		name := fmt.Sprintf("wall %d (%.2f ft)", i, wall.LengthFeet)
		endpoints = append(endpoints,
			opts.ScatterData{Name: name, Value: []float64{wall.Start.X, wall.Start.Y}},
			opts.ScatterData{Name: name, Value: []float64{wall.End.X, wall.End.Y}},
		)
	}

	extent := append([]floorplan.Point2D(nil), plan.Points2D...)
	for _, wall := range plan.Walls {
		extent = append(extent, wall.Start, wall.End)
	}
	b := floorplan.BoundsOf(extent)
	half := math.Max(b.Width, b.Height) * 0.55
	if half == 0 {
		half = 1
	}
	cx, cy := b.MinX+b.Width/2, b.MinY+b.Height/2

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Floor plan walls",
			Width:      "900px",
			Height:     "900px",
			AssetsHost: echartsAssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Floor plan walls",
			Subtitle: fmt.Sprintf("run=%s points=%d stride=%d walls=%d", runID, len(points), stride, len(plan.Walls)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: cx - half, Max: cx + half, Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: cy - half, Max: cy + half, Name: "y", Inverse: opts.Bool(true)}),
	)
	scatter.AddSeries("Slice points", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	scatter.AddSeries("Wall endpoints", endpoints, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	return scatter
}
