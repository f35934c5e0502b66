package floorplan

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// covarianceEpsilon is the threshold below which covariance terms and
// direction magnitudes are treated as zero.
const covarianceEpsilon = 1e-9

// PrincipalAxis is the result of a 2D principal component analysis.
type PrincipalAxis struct {
	Centroid  r2.Vec
	Direction r2.Vec  // unit length
	Major     float64 // larger eigenvalue
	Minor     float64 // smaller eigenvalue
}

// Angle returns the direction angle in radians.
func (a PrincipalAxis) Angle() float64 {
	return math.Atan2(a.Direction.Y, a.Direction.X)
}

// Project returns the signed offset of p along the axis, measured from the
// centroid.
func (a PrincipalAxis) Project(p Point2D) float64 {
	return r2.Dot(r2.Sub(p.Vec(), a.Centroid), a.Direction)
}

// Perpendicular returns the signed distance of p from the axis line.
func (a PrincipalAxis) Perpendicular(p Point2D) float64 {
	return r2.Cross(a.Direction, r2.Sub(p.Vec(), a.Centroid))
}

// Point returns the point at offset t along the axis.
func (a PrincipalAxis) Point(t float64) Point2D {
	return Point2DFromVec(r2.Add(a.Centroid, r2.Scale(t, a.Direction)))
}

// FitPrincipalAxis solves the 2×2 covariance eigenproblem in closed form.
//
// Algorithm:
//  1. Centroid and covariance [c00 c01; c01 c11]
//  2. λ = (trace ± sqrt(trace² - 4·det)) / 2
//  3. Principal eigenvector [c01, λ1 - c00], or the dominant coordinate
//     axis when the covariance is diagonal
//
// It reports false for fewer than two points, a negative discriminant, or
// coincident points with no direction at all.
func FitPrincipalAxis(points []Point2D) (PrincipalAxis, bool) {
	n := len(points)
	if n < 2 {
		return PrincipalAxis{}, false
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	meanX, c00 := stat.PopMeanVariance(xs, nil)
	meanY, c11 := stat.PopMeanVariance(ys, nil)
	c01 := stat.Covariance(xs, ys, nil) * float64(n-1) / float64(n)

	trace := c00 + c11
	det := c00*c11 - c01*c01
	discriminant := trace*trace - 4*det
	if discriminant < 0 {
		return PrincipalAxis{}, false
	}
	sqrtDisc := math.Sqrt(discriminant)
	lambda1 := (trace + sqrtDisc) / 2
	lambda2 := (trace - sqrtDisc) / 2

	var dir r2.Vec
	if math.Abs(c01) > covarianceEpsilon {
		dir = r2.Vec{X: c01, Y: lambda1 - c00}
	} else if c00 >= c11 {
		dir = r2.Vec{X: c00, Y: 0}
	} else {
		dir = r2.Vec{X: 0, Y: c11}
	}
	mag := r2.Norm(dir)
	if mag < covarianceEpsilon {
		return PrincipalAxis{}, false
	}

	return PrincipalAxis{
		Centroid:  r2.Vec{X: meanX, Y: meanY},
		Direction: r2.Scale(1/mag, dir),
		Major:     lambda1,
		Minor:     lambda2,
	}, true
}
