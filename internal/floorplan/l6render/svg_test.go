package l6render

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// svgSummary is what the tests read back out of a rendered document.
type svgSummary struct {
	elements   map[string]int
	groupIDs   []string
	texts      []string
	transforms []string
	markerRefs int
}

func parseSVG(t *testing.T, doc string) svgSummary {
	t.Helper()
	s := svgSummary{elements: map[string]int{}}
	dec := xml.NewDecoder(strings.NewReader(doc))
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err, "document is not well-formed XML")

		switch el := tok.(type) {
		case xml.StartElement:
			s.elements[el.Name.Local]++
			for _, a := range el.Attr {
				switch a.Name.Local {
				case "id":
					if el.Name.Local == "g" {
						s.groupIDs = append(s.groupIDs, a.Value)
					}
				case "transform":
					s.transforms = append(s.transforms, a.Value)
				case "marker-start", "marker-end":
					s.markerRefs++
				}
			}
			inText = el.Name.Local == "text"
		case xml.CharData:
			if inText {
				s.texts = append(s.texts, string(el))
			}
		case xml.EndElement:
			inText = false
		}
	}
	return s
}

func wall(x1, y1, x2, y2, thickness float64) floorplan.WallSegment {
	w := floorplan.WallSegment{
		Start:     floorplan.Point2D{X: x1, Y: y1},
		End:       floorplan.Point2D{X: x2, Y: y2},
		Thickness: thickness,
	}
	w.LengthFeet = w.Length()
	return w
}

func squareRoom() *floorplan.FloorPlan {
	walls := []floorplan.WallSegment{
		wall(0, 0, 10, 0, 0.5),
		wall(10, 0, 10, 8, 0.5),
		wall(10, 8, 0, 8, 0.5),
		wall(0, 8, 0, 0, 0),
	}
	points := []floorplan.Point2D{{X: 0, Y: 0}, {X: 5, Y: 0.1}, {X: 10, Y: 8}}
	return &floorplan.FloorPlan{
		Walls:    walls,
		Points2D: points,
		Bounds:   floorplan.BoundsOf(points),
		Metadata: floorplan.Metadata{WallCount: len(walls), ScaleFactor: 1},
	}
}

// =============================================================================
// Tests: Options
// =============================================================================

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, 800.0, o.Width)
	assert.Equal(t, 600.0, o.Height)
	assert.Equal(t, 40.0, o.Padding)
	assert.True(t, o.ShowWalls)
	assert.True(t, o.ShowDimensions)
	assert.False(t, o.ShowPoints)
	assert.False(t, o.ShowThickness)
	assert.NoError(t, o.Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero width", func(o *Options) { o.Width = 0 }},
		{"negative height", func(o *Options) { o.Height = -1 }},
		{"negative padding", func(o *Options) { o.Padding = -5 }},
		{"padding fills canvas", func(o *Options) { o.Padding = 300 }},
		{"zero font", func(o *Options) { o.FontSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			err := o.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, floorplan.ErrInvalidConfig))

			_, err = RenderSVG(squareRoom(), o)
			assert.True(t, errors.Is(err, floorplan.ErrInvalidConfig))
		})
	}
}

// =============================================================================
// Tests: View Transform
// =============================================================================

func TestFitTransform_UniformScaleCentred(t *testing.T) {
	b := floorplan.Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 5, Width: 10, Height: 5}
	vt := FitTransform(b, 800, 600, 40)

	// Width limits: 720/10 beats 520/5.
	assert.InDelta(t, 72, vt.Scale, 1e-12)

	x, y := vt.Apply(floorplan.Point2D{X: 0, Y: 0})
	assert.InDelta(t, 40, x, 1e-9)
	assert.InDelta(t, 120, y, 1e-9)

	x, y = vt.Apply(floorplan.Point2D{X: 10, Y: 5})
	assert.InDelta(t, 760, x, 1e-9)
	assert.InDelta(t, 480, y, 1e-9)
}

func TestFitTransform_OffsetBounds(t *testing.T) {
	b := floorplan.Bounds{MinX: -20, MaxX: -10, MinY: 100, MaxY: 110, Width: 10, Height: 10}
	vt := FitTransform(b, 800, 600, 40)
	assert.InDelta(t, 52, vt.Scale, 1e-12)

	// Centre of the bounds lands on the centre of the canvas.
	x, y := vt.Apply(floorplan.Point2D{X: -15, Y: 105})
	assert.InDelta(t, 400, x, 1e-9)
	assert.InDelta(t, 300, y, 1e-9)
}

func TestFitTransform_Degenerate(t *testing.T) {
	vt := FitTransform(floorplan.Bounds{MinX: 3, MaxX: 3, MinY: 4, MaxY: 4}, 800, 600, 40)
	assert.Equal(t, 1.0, vt.Scale)
	x, y := vt.Apply(floorplan.Point2D{X: 3, Y: 4})
	assert.InDelta(t, 400, x, 1e-9)
	assert.InDelta(t, 300, y, 1e-9)

	// A horizontal line only constrains the x scale.
	vt = FitTransform(floorplan.Bounds{MinX: 0, MaxX: 10, Width: 10}, 800, 600, 40)
	assert.InDelta(t, 72, vt.Scale, 1e-12)
}

func TestNormalizeLabelAngle(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{45, 45},
		{89.9, 89.9},
		{90, -90},
		{135, -45},
		{180, 0},
		{-90, -90},
		{-91, 89},
		{-180, 0},
		{270, -90},
		{-270, -90},
		{450, -90},
	}
	for _, tt := range tests {
		got := NormalizeLabelAngle(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "NormalizeLabelAngle(%v)", tt.in)
		assert.True(t, got >= -90 && got < 90, "NormalizeLabelAngle(%v) = %v out of range", tt.in, got)
	}
}

// =============================================================================
// Tests: RenderSVG
// =============================================================================

func TestRenderSVG_DefaultLayers(t *testing.T) {
	doc, err := RenderSVG(squareRoom(), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `width="800.00"`)
	assert.Contains(t, doc, `viewBox="0.00 0.00 800.00 600.00"`)
	local := strings.NewReplacer("http://www.w3.org/2000/svg", "", "http://www.w3.org/1999/xlink", "").Replace(doc)
	assert.NotContains(t, local, "http", "document references an external resource")

	s := parseSVG(t, doc)
	assert.Equal(t, []string{LayerWalls, LayerDimensions}, s.groupIDs)
	assert.Equal(t, 2, s.elements["marker"])
	// Four centrelines plus two extension lines and a dimension line each.
	assert.Equal(t, 4+4*3, s.elements["line"])
	assert.Equal(t, 8, s.markerRefs)
	assert.Zero(t, s.elements["circle"])
	assert.Zero(t, s.elements["polygon"])

	assert.ElementsMatch(t, []string{`10' 0"`, `8' 0"`, `10' 0"`, `8' 0"`}, s.texts)
}

func TestRenderSVG_AllLayers(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowPoints = true
	opts.ShowThickness = true
	plan := squareRoom()

	s := parseSVG(t, mustRender(t, plan, opts))
	assert.Equal(t, []string{LayerPoints, LayerThickness, LayerWalls, LayerDimensions}, s.groupIDs)
	assert.Equal(t, len(plan.Points2D), s.elements["circle"])
	// The last wall has no thickness and gets no polygon.
	assert.Equal(t, 3, s.elements["polygon"])
}

func TestRenderSVG_LayersOff(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowWalls = false
	opts.ShowDimensions = false

	s := parseSVG(t, mustRender(t, squareRoom(), opts))
	assert.Empty(t, s.groupIDs)
	assert.Zero(t, s.elements["line"])
	assert.Zero(t, s.elements["text"])
}

func TestRenderSVG_LabelsStayUpright(t *testing.T) {
	plan := &floorplan.FloorPlan{
		Walls: []floorplan.WallSegment{
			wall(10, 0, 0, 0, 0), // drawn right to left
			wall(0, 0, 0, 10, 0), // drawn downwards on screen
		},
		Metadata: floorplan.Metadata{ScaleFactor: 1},
	}
	s := parseSVG(t, mustRender(t, plan, DefaultOptions()))
	require.Len(t, s.transforms, 2)
	assert.True(t, strings.HasSuffix(s.transforms[0], "rotate(0)"), s.transforms[0])
	assert.True(t, strings.HasSuffix(s.transforms[1], "rotate(-90)"), s.transforms[1])
}

func TestRenderSVG_FractionalLabel(t *testing.T) {
	w := wall(0, 0, 12.515625, 0, 0)
	plan := &floorplan.FloorPlan{Walls: []floorplan.WallSegment{w}, Metadata: floorplan.Metadata{ScaleFactor: 1}}
	s := parseSVG(t, mustRender(t, plan, DefaultOptions()))
	assert.Equal(t, []string{`12' 6 3/16"`}, s.texts)
}

func TestRenderSVG_EmptyPlan(t *testing.T) {
	for _, plan := range []*floorplan.FloorPlan{nil, {}} {
		doc, err := RenderSVG(plan, DefaultOptions())
		require.NoError(t, err)
		s := parseSVG(t, doc)
		assert.Equal(t, 1, s.elements["svg"])
		assert.Zero(t, s.elements["line"])
		assert.Contains(t, doc, "Floor plan: 0 walls")
	}
}

func TestRenderSVG_ZeroLengthWallSkipsDimension(t *testing.T) {
	plan := &floorplan.FloorPlan{
		Walls:    []floorplan.WallSegment{wall(1, 1, 1, 1, 0.5), wall(0, 0, 4, 0, 0)},
		Metadata: floorplan.Metadata{ScaleFactor: 1},
	}
	s := parseSVG(t, mustRender(t, plan, DefaultOptions()))
	assert.Equal(t, 2+3, s.elements["line"])
	assert.Len(t, s.texts, 1)
}

func mustRender(t *testing.T, plan *floorplan.FloorPlan, opts Options) string {
	t.Helper()
	doc, err := RenderSVG(plan, opts)
	require.NoError(t, err)
	return doc
}
