// Package l2slice selects the points inside an oriented slab and projects
// them onto the floor plane.
package l2slice

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// RotationMatrix returns R = Rx·Ry·Rz for the Euler angles in rot.
func RotationMatrix(rot floorplan.Vec3) *r3.Mat {
	var xy, xyz r3.Mat
	xy.Mul(r3.NewRotation(rot.X, axisX).Mat(), r3.NewRotation(rot.Y, axisY).Mat())
	xyz.Mul(&xy, r3.NewRotation(rot.Z, axisZ).Mat())
	return &xyz
}

// Slab is a SliceBoxConfig prepared for repeated point tests.
type Slab struct {
	center    r3.Vec
	rot       *r3.Mat
	halfX     float64
	halfZ     float64
	halfThick float64 // view units
}

// NewSlab precomputes the rotation and the vertical half-thickness, in view
// units, of box.
func NewSlab(box floorplan.SliceBoxConfig, scaleFactor float64) *Slab {
	return &Slab{
		center:    box.Center.Vec(),
		rot:       RotationMatrix(box.Rotation),
		halfX:     box.HalfExtents.X,
		halfZ:     box.HalfExtents.Z,
		halfThick: box.ThicknessFeet() * scaleFactor / 2,
	}
}

// Local returns p in slab-local coordinates: Rᵀ(p - center).
func (s *Slab) Local(p floorplan.Point3D) r3.Vec {
	return s.rot.MulVecTrans(r3.Sub(p.Vec(), s.center))
}

// Contains reports whether p lies inside the slab, boundaries included.
func (s *Slab) Contains(p floorplan.Point3D) bool {
	return s.inside(s.Local(p))
}

// inside is written as an acceptance test so that NaN coordinates fail it.
func (s *Slab) inside(l r3.Vec) bool {
	return math.Abs(l.X) <= s.halfX && math.Abs(l.Z) <= s.halfZ && math.Abs(l.Y) <= s.halfThick
}

// SliceAndProject keeps the points inside the slab and projects them onto
// the horizontal plane, mapping world (x, z) to plan (x, y). Inputs are not
// modified. No points in the slab yields an empty, non-nil slice.
func SliceAndProject(points []floorplan.Point3D, box floorplan.SliceBoxConfig, scaleFactor float64) []floorplan.Point2D {
	s := NewSlab(box, scaleFactor)
	out := make([]floorplan.Point2D, 0, len(points)/4)
	for _, p := range points {
		l := s.Local(p)
		if !s.inside(l) {
			continue
		}
		// Back to world orientation before dropping the vertical axis.
		w := r3.Add(s.rot.MulVec(l), s.center)
		out = append(out, floorplan.Point2D{X: w.X, Y: w.Z})
	}
	return out
}

// Validate rejects a slab or scale factor that can never select a point.
func Validate(box floorplan.SliceBoxConfig, scaleFactor float64) error {
	if err := floorplan.ValidateScaleFactor(scaleFactor); err != nil {
		return err
	}
	return floorplan.ValidateSliceBox(box)
}
