package l3cluster

import (
	"math"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Adaptive parameter bounds.
const (
	adaptiveEpsFactor = 0.007
	minAdaptiveEps    = 0.002
	maxAdaptiveEps    = 0.05
	minAdaptivePoints = 5
	maxAdaptivePoints = 50
)

// AdaptiveParams derives DBSCAN parameters from the extent and density of
// points so the same defaults work for a small room and a warehouse:
//
//	eps       = clamp(diagonal·0.007, 0.002, 0.05)
//	minPoints = clamp(floor(density·eps²·π), 5, 50), density = n / area
//
// Collinear input with zero bounding area uses the minimum point count.
func AdaptiveParams(points []floorplan.Point2D) Params {
	b := floorplan.BoundsOf(points)
	eps := floorplan.Clamp(b.Diagonal()*adaptiveEpsFactor, minAdaptiveEps, maxAdaptiveEps)

	minPoints := minAdaptivePoints
	if area := b.Area(); area > 0 {
		density := float64(len(points)) / area
		expected := math.Floor(density * eps * eps * math.Pi)
		minPoints = int(floorplan.Clamp(expected, minAdaptivePoints, maxAdaptivePoints))
	}
	return Params{Eps: eps, MinPoints: minPoints}
}

// Resolve returns fixed parameters when both are set, otherwise adaptive
// ones with any fixed value kept.
func Resolve(points []floorplan.Point2D, eps float64, minPoints int) Params {
	if eps > 0 && minPoints > 0 {
		return Params{Eps: eps, MinPoints: minPoints}
	}
	p := AdaptiveParams(points)
	if eps > 0 {
		p.Eps = eps
	}
	if minPoints > 0 {
		p.MinPoints = minPoints
	}
	return p
}
