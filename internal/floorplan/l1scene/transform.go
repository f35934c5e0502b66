package l1scene

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Matrix4 is a 4x4 homogeneous transform stored row-major:
// [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33].
// The zero value is not a valid transform; use Identity.
type Matrix4 [16]float64

// Identity is the 4x4 identity transform.
var Identity = Matrix4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// Translation returns a pure translation transform.
func Translation(x, y, z float64) Matrix4 {
	m := Identity
	m[3], m[7], m[11] = x, y, z
	return m
}

// Scaling returns a pure scale transform.
func Scaling(sx, sy, sz float64) Matrix4 {
	m := Identity
	m[0], m[5], m[10] = sx, sy, sz
	return m
}

// IsZero reports whether every element is zero, which manifests treat as
// "no transform given".
func (m Matrix4) IsZero() bool {
	return m == Matrix4{}
}

// Mul returns m·o, so that (m·o)·p applies o first.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	a := mat.NewDense(4, 4, m[:])
	b := mat.NewDense(4, 4, o[:])
	var c mat.Dense
	c.Mul(a, b)
	var out Matrix4
	copy(out[:], c.RawMatrix().Data)
	return out
}

// Apply transforms point p, ignoring the projective row.
func (m Matrix4) Apply(p floorplan.Point3D) floorplan.Point3D {
	return floorplan.Point3D{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}
