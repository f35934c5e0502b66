package export

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// DefaultPlotSize is the edge length of the square plot canvas.
const DefaultPlotSize = 8 * vg.Inch

var (
	pointColor = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	wallColor  = color.RGBA{R: 33, G: 33, B: 33, A: 255}
)

// NewPlot draws the slice points as a scatter and every wall as a line.
// Both axes span the same range so the plan keeps its proportions, and y
// grows downwards to match the SVG drawing.
func NewPlot(plan *floorplan.FloorPlan) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Floor plan: %d walls", len(plan.Walls))
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	if len(plan.Points2D) > 0 {
		pts := make(plotter.XYs, len(plan.Points2D))
		for i, pt := range plan.Points2D {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create point scatter: %w", err)
		}
		scatter.GlyphStyle.Color = pointColor
		scatter.GlyphStyle.Radius = vg.Points(0.75)
		p.Add(scatter)
	}

	for i, w := range plan.Walls {
		line, err := plotter.NewLine(plotter.XYs{{X: w.Start.X, Y: w.Start.Y}, {X: w.End.X, Y: w.End.Y}})
		if err != nil {
			return nil, fmt.Errorf("failed to create line for wall %d: %w", i, err)
		}
		line.Color = wallColor
		line.Width = vg.Points(2)
		p.Add(line)
	}

	equalAxes(p, plan)
	return p, nil
}

// equalAxes gives both axes the span of the larger extent, centred on the
// plan, with a 5% margin.
func equalAxes(p *plot.Plot, plan *floorplan.FloorPlan) {
	pts := append([]floorplan.Point2D(nil), plan.Points2D...)
	for _, w := range plan.Walls {
		pts = append(pts, w.Start, w.End)
	}
	if len(pts) == 0 {
		return
	}
	b := floorplan.BoundsOf(pts)
	half := math.Max(b.Width, b.Height) * 0.525
	if half == 0 {
		half = 1
	}
	cx, cy := b.MinX+b.Width/2, b.MinY+b.Height/2
	p.X.Min, p.X.Max = cx-half, cx+half
	p.Y.Min, p.Y.Max = cy-half, cy+half
}

// WritePlot renders NewPlot(plan) as a size×size image. format is one of
// FormatPNG, FormatPDF or FormatSVG.
func WritePlot(w io.Writer, plan *floorplan.FloorPlan, format Format, size vg.Length) error {
	switch format {
	case FormatPNG, FormatPDF, FormatSVG:
	default:
		return fmt.Errorf("unsupported plot format %q", format)
	}
	p, err := NewPlot(plan)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(size, size, string(format))
	if err != nil {
		return fmt.Errorf("failed to render %s plot: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write %s plot: %w", format, err)
	}
	return nil
}
