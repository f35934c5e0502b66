package floorplan

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point2D is a position on the floor plane, in view units.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns p as a gonum r2 vector.
func (p Point2D) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Point2DFromVec converts a gonum r2 vector back to a Point2D.
func Point2DFromVec(v r2.Vec) Point2D { return Point2D{X: v.X, Y: v.Y} }

// DistanceTo returns the Euclidean distance between p and q.
func (p Point2D) DistanceTo(q Point2D) float64 {
	return r2.Norm(r2.Sub(p.Vec(), q.Vec()))
}

// Point3D is a world-space vertex position.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns p as a gonum r3 vector.
func (p Point3D) Vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// Point3DFromVec converts a gonum r3 vector back to a Point3D.
func Point3DFromVec(v r3.Vec) Point3D { return Point3D{X: v.X, Y: v.Y, Z: v.Z} }

// Vec3 is a plain triple used for half extents and Euler rotations.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SliceBoxConfig defines the oriented slab that selects the points taking
// part in one reconstruction. Rotation holds Euler angles in radians applied
// in XYZ order (R = Rx·Ry·Rz). The slab's vertical extent comes from
// ThicknessInches, not HalfExtents.Y.
type SliceBoxConfig struct {
	Center          Point3D `json:"center"`
	HalfExtents     Vec3    `json:"half_extents"`
	Rotation        Vec3    `json:"rotation"`
	ThicknessInches float64 `json:"thickness_inches"`
}

// ThicknessFeet returns the slab thickness in feet.
func (c SliceBoxConfig) ThicknessFeet() float64 {
	return c.ThicknessInches / 12.0
}

// WallSegment is a straight wall on the floor plane.
//
// LengthFeet must equal |End-Start| / scaleFactor once the pipeline has run
// its final recalculation pass; intermediate stages may leave it stale.
type WallSegment struct {
	Start      Point2D `json:"start"`
	End        Point2D `json:"end"`
	Thickness  float64 `json:"thickness"` // feet
	LengthFeet float64 `json:"length_feet"`
}

// Length returns the segment length in view units.
func (w WallSegment) Length() float64 {
	return w.Start.DistanceTo(w.End)
}

// Direction returns End-Start.
func (w WallSegment) Direction() r2.Vec {
	return r2.Sub(w.End.Vec(), w.Start.Vec())
}

// Angle returns the direction angle in radians, in (-π, π].
func (w WallSegment) Angle() float64 {
	d := w.Direction()
	return math.Atan2(d.Y, d.X)
}

// Bounds is the axis-aligned extent of the projected points.
type Bounds struct {
	MinX   float64 `json:"min_x"`
	MaxX   float64 `json:"max_x"`
	MinY   float64 `json:"min_y"`
	MaxY   float64 `json:"max_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Diagonal returns the length of the bounds diagonal.
func (b Bounds) Diagonal() float64 {
	return math.Hypot(b.Width, b.Height)
}

// Area returns Width·Height.
func (b Bounds) Area() float64 {
	return b.Width * b.Height
}

// BoundsOf computes the bounds of points. An empty slice yields zero bounds.
func BoundsOf(points []Point2D) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinX: points[0].X, MaxX: points[0].X,
		MinY: points[0].Y, MaxY: points[0].Y,
	}
	for _, p := range points[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	b.Width = b.MaxX - b.MinX
	b.Height = b.MaxY - b.MinY
	return b
}

// Detection methods recorded in Metadata.
const (
	MethodNone   = "none"
	MethodRANSAC = "ransac"
	MethodDBSCAN = "dbscan"
)

// Metadata summarises one pipeline run.
type Metadata struct {
	PointCount           int       `json:"point_count"`
	WallCount            int       `json:"wall_count"`
	GeneratedAt          time.Time `json:"generated_at"`
	SliceThicknessInches float64   `json:"slice_thickness_inches"`
	ScaleFactor          float64   `json:"scale_factor"`
	DetectionMethod      string    `json:"detection_method"`
}

// FloorPlan is the sole output of the geometry core. It is created once per
// run and owned by the caller afterwards.
type FloorPlan struct {
	Walls    []WallSegment `json:"walls"`
	Points2D []Point2D     `json:"points_2d"`
	Bounds   Bounds        `json:"bounds"`
	Metadata Metadata      `json:"metadata"`
}

// EndpointRef ties one wall endpoint back to its owning wall during corner
// snapping.
type EndpointRef struct {
	WallIndex int
	IsStart   bool
	Point     Point2D
}

// RecalculateLengths sets LengthFeet on every wall from its endpoints.
// The slice is updated in place.
func RecalculateLengths(walls []WallSegment, scaleFactor float64) {
	for i := range walls {
		walls[i].LengthFeet = walls[i].Length() / scaleFactor
	}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// LineAngleDiff returns the undirected angle between two direction angles
// (radians), in [0, π/2]. Reversed directions compare as equal.
func LineAngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), math.Pi)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}
