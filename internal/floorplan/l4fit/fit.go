// Package l4fit turns point sets into wall segments: PCA line fitting,
// RANSAC line detection and the DBSCAN fallback route.
package l4fit

import (
	"math"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// MinFitLengthFeet rejects fits shorter than one foot regardless of the
// caller's minimum wall length.
const MinFitLengthFeet = 1.0

// FitLine fits one straight wall to points by principal component
// analysis. Endpoints are the extreme projections onto the principal axis
// and thickness is twice the largest perpendicular deviation, in feet.
// It reports false for degenerate input or a fit shorter than
// MinFitLengthFeet.
func FitLine(points []floorplan.Point2D, scaleFactor float64) (floorplan.WallSegment, bool) {
	axis, ok := floorplan.FitPrincipalAxis(points)
	if !ok {
		return floorplan.WallSegment{}, false
	}

	minProj, maxProj := math.MaxFloat64, -math.MaxFloat64
	maxPerp := 0.0
	for _, p := range points {
		t := axis.Project(p)
		minProj = math.Min(minProj, t)
		maxProj = math.Max(maxProj, t)
		maxPerp = math.Max(maxPerp, math.Abs(axis.Perpendicular(p)))
	}

	wall := floorplan.WallSegment{
		Start:      axis.Point(minProj),
		End:        axis.Point(maxProj),
		Thickness:  2 * maxPerp / scaleFactor,
		LengthFeet: (maxProj - minProj) / scaleFactor,
	}
	if wall.LengthFeet < MinFitLengthFeet {
		return floorplan.WallSegment{}, false
	}
	return wall, true
}
