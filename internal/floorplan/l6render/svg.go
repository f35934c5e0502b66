// Package l6render draws a floor plan as a self-contained SVG document with
// architectural dimension annotations.
package l6render

import (
	"bytes"
	"fmt"
	"math"

	svg "github.com/ajstarks/svgo/float"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/units"
)

// Defaults for Options.
const (
	DefaultWidth           = 800
	DefaultHeight          = 600
	DefaultPadding         = 40
	DefaultDimensionOffset = 20
	DefaultFontSize        = 12
)

// Layer ids in the generated document.
const (
	LayerPoints     = "points"
	LayerThickness  = "thickness"
	LayerWalls      = "walls"
	LayerDimensions = "dimensions"
)

const (
	arrowStartID = "dim-arrow-start"
	arrowEndID   = "dim-arrow-end"

	extensionGap      = 3.0 // px between the wall and its extension lines
	extensionOverhang = 4.0 // px the extension lines run past the dimension line
	labelLift         = 4.0 // px between the dimension line and its label
)

// Options controls canvas size and which layers are drawn.
type Options struct {
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	Padding         float64 `json:"padding"`
	ShowPoints      bool    `json:"show_points"`
	ShowThickness   bool    `json:"show_thickness"`
	ShowWalls       bool    `json:"show_walls"`
	ShowDimensions  bool    `json:"show_dimensions"`
	DimensionOffset float64 `json:"dimension_offset"` // px
	FontSize        float64 `json:"font_size"`        // px
}

// DefaultOptions returns an 800×600 canvas with centrelines and dimensions.
func DefaultOptions() Options {
	return Options{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		Padding:         DefaultPadding,
		ShowWalls:       true,
		ShowDimensions:  true,
		DimensionOffset: DefaultDimensionOffset,
		FontSize:        DefaultFontSize,
	}
}

// Validate rejects canvases with no drawable area.
func (o Options) Validate() error {
	if !(o.Width > 0) || !(o.Height > 0) || math.IsInf(o.Width, 0) || math.IsInf(o.Height, 0) {
		return fmt.Errorf("%w: canvas must be positive, got %vx%v", floorplan.ErrInvalidConfig, o.Width, o.Height)
	}
	if math.IsNaN(o.Padding) || o.Padding < 0 || 2*o.Padding >= math.Min(o.Width, o.Height) {
		return fmt.Errorf("%w: padding %v leaves no room on a %vx%v canvas", floorplan.ErrInvalidConfig, o.Padding, o.Width, o.Height)
	}
	if !(o.FontSize > 0) {
		return fmt.Errorf("%w: font size must be positive, got %v", floorplan.ErrInvalidConfig, o.FontSize)
	}
	if math.IsNaN(o.DimensionOffset) {
		return fmt.Errorf("%w: dimension offset is NaN", floorplan.ErrInvalidConfig)
	}
	return nil
}

// ViewTransform maps plan coordinates onto the canvas with one uniform
// scale, so shapes are never stretched.
type ViewTransform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// FitTransform centres b inside the canvas less padding. A degenerate axis
// takes the scale of the other one; a single point gets scale 1.
func FitTransform(b floorplan.Bounds, width, height, padding float64) ViewTransform {
	availW, availH := width-2*padding, height-2*padding

	var scale float64
	switch {
	case b.Width > 0 && b.Height > 0:
		scale = math.Min(availW/b.Width, availH/b.Height)
	case b.Width > 0:
		scale = availW / b.Width
	case b.Height > 0:
		scale = availH / b.Height
	default:
		scale = 1
	}

	return ViewTransform{
		Scale:   scale,
		OffsetX: padding + (availW-b.Width*scale)/2 - b.MinX*scale,
		OffsetY: padding + (availH-b.Height*scale)/2 - b.MinY*scale,
	}
}

// Apply maps p to canvas pixels.
func (t ViewTransform) Apply(p floorplan.Point2D) (float64, float64) {
	return p.X*t.Scale + t.OffsetX, p.Y*t.Scale + t.OffsetY
}

// NormalizeLabelAngle folds a direction in degrees into [-90, 90) so text
// drawn along it reads left to right.
func NormalizeLabelAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < -180 {
		deg += 360
	} else if deg >= 180 {
		deg -= 360
	}
	switch {
	case deg >= 90:
		deg -= 180
	case deg < -90:
		deg += 180
	}
	return deg
}

// extent covers both the projected points and every wall endpoint, so a
// plan built without points still fits the canvas.
func extent(plan *floorplan.FloorPlan) floorplan.Bounds {
	pts := make([]floorplan.Point2D, 0, len(plan.Points2D)+2*len(plan.Walls))
	pts = append(pts, plan.Points2D...)
	for _, w := range plan.Walls {
		pts = append(pts, w.Start, w.End)
	}
	if len(pts) == 0 {
		return plan.Bounds
	}
	return floorplan.BoundsOf(pts)
}

// RenderSVG draws plan into an SVG document. Layers are emitted bottom to
// top: points, thickness polygons, centrelines, dimensions.
func RenderSVG(plan *floorplan.FloorPlan, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if plan == nil {
		plan = &floorplan.FloorPlan{}
	}
	vt := FitTransform(extent(plan), opts.Width, opts.Height, opts.Padding)

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Startview(opts.Width, opts.Height, 0, 0, opts.Width, opts.Height)
	canvas.Title(fmt.Sprintf("Floor plan: %d walls", len(plan.Walls)))
	writeMarkers(canvas)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:#ffffff")

	if opts.ShowPoints {
		canvas.Group(`id="`+LayerPoints+`"`, "fill:#9e9e9e")
		for _, p := range plan.Points2D {
			x, y := vt.Apply(p)
			canvas.Circle(x, y, 1)
		}
		canvas.Gend()
	}

	if opts.ShowThickness {
		canvas.Group(`id="`+LayerThickness+`"`, "fill:#d7ccc8;stroke:#8d6e63;stroke-width:0.5")
		for _, w := range plan.Walls {
			if xs, ys, ok := thicknessQuad(w, plan.Metadata.ScaleFactor, vt); ok {
				canvas.Polygon(xs, ys)
			}
		}
		canvas.Gend()
	}

	if opts.ShowWalls {
		canvas.Group(`id="`+LayerWalls+`"`, "stroke:#212121;stroke-width:2;stroke-linecap:round")
		for _, w := range plan.Walls {
			x1, y1 := vt.Apply(w.Start)
			x2, y2 := vt.Apply(w.End)
			canvas.Line(x1, y1, x2, y2)
		}
		canvas.Gend()
	}

	if opts.ShowDimensions {
		canvas.Group(`id="`+LayerDimensions+`"`, "stroke:#1565c0;stroke-width:0.75;fill:#1565c0")
		textStyle := fmt.Sprintf("stroke:none;font-family:sans-serif;font-size:%gpx;text-anchor:middle", opts.FontSize)
		for _, w := range plan.Walls {
			drawDimension(canvas, w, vt, opts.DimensionOffset, textStyle)
		}
		canvas.Gend()
	}

	canvas.End()
	return buf.String(), nil
}

func writeMarkers(canvas *svg.SVG) {
	canvas.Def()
	canvas.Marker(arrowEndID, 10, 5, 8, 8, `viewBox="0 0 10 10"`, `orient="auto"`, `markerUnits="userSpaceOnUse"`)
	canvas.Path("M0,0 L10,5 L0,10 z", "fill:#1565c0;stroke:none")
	canvas.MarkerEnd()
	canvas.Marker(arrowStartID, 0, 5, 8, 8, `viewBox="0 0 10 10"`, `orient="auto"`, `markerUnits="userSpaceOnUse"`)
	canvas.Path("M10,0 L0,5 L10,10 z", "fill:#1565c0;stroke:none")
	canvas.MarkerEnd()
	canvas.DefEnd()
}

// thicknessQuad offsets the wall by half its thickness on either side of
// its centreline. Thickness is in feet; scaleFactor converts to plan units.
func thicknessQuad(w floorplan.WallSegment, scaleFactor float64, vt ViewTransform) ([]float64, []float64, bool) {
	if !(w.Thickness > 0) || !(scaleFactor > 0) || w.Length() == 0 {
		return nil, nil, false
	}
	dir := r2.Unit(w.Direction())
	n := r2.Scale(w.Thickness*scaleFactor/2, r2.Vec{X: -dir.Y, Y: dir.X})

	corners := [4]r2.Vec{
		r2.Add(w.Start.Vec(), n),
		r2.Add(w.End.Vec(), n),
		r2.Sub(w.End.Vec(), n),
		r2.Sub(w.Start.Vec(), n),
	}
	xs, ys := make([]float64, 4), make([]float64, 4)
	for i, c := range corners {
		xs[i], ys[i] = vt.Apply(floorplan.Point2DFromVec(c))
	}
	return xs, ys, true
}

// drawDimension draws two extension lines perpendicular to the wall, an
// arrowed dimension line offset from it and the length label.
func drawDimension(canvas *svg.SVG, w floorplan.WallSegment, vt ViewTransform, offset float64, textStyle string) {
	ax, ay := vt.Apply(w.Start)
	bx, by := vt.Apply(w.End)
	a, b := r2.Vec{X: ax, Y: ay}, r2.Vec{X: bx, Y: by}
	d := r2.Sub(b, a)
	if r2.Norm(d) < 1e-9 {
		return
	}
	dir := r2.Unit(d)
	n := r2.Vec{X: -dir.Y, Y: dir.X}

	sign := 1.0
	if offset < 0 {
		sign = -1
	}
	gap := r2.Scale(sign*extensionGap, n)
	reach := r2.Scale(offset+sign*extensionOverhang, n)
	shift := r2.Scale(offset, n)

	for _, end := range []r2.Vec{a, b} {
		from, to := r2.Add(end, gap), r2.Add(end, reach)
		canvas.Line(from.X, from.Y, to.X, to.Y)
	}

	da, db := r2.Add(a, shift), r2.Add(b, shift)
	canvas.Line(da.X, da.Y, db.X, db.Y,
		`marker-start="url(#`+arrowStartID+`)"`, `marker-end="url(#`+arrowEndID+`)"`)

	mid := r2.Scale(0.5, r2.Add(da, db))
	angle := NormalizeLabelAngle(math.Atan2(d.Y, d.X) * 180 / math.Pi)
	canvas.TranslateRotate(mid.X, mid.Y, angle)
	canvas.Text(0, -labelLift, units.FeetToFeetInches(w.LengthFeet), textStyle)
	canvas.Gend()
}
