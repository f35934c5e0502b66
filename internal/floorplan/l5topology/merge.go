// Package l5topology repairs wall topology after detection: collinear
// neighbours are fused and endpoints meeting at a junction are snapped to a
// shared vertex.
package l5topology

import (
	"math"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// MergeCollinearWalls fuses walls whose undirected direction angles differ by
// at most angleTolDeg and whose closest endpoints lie within distTolFeet.
// Each unmerged wall in turn absorbs every remaining wall it can reach,
// repeating until nothing more joins it. A merged wall spans the two most
// distant of the four endpoints and keeps the larger thickness.
//
// The input is not modified. Callers still run floorplan.RecalculateLengths
// once topology repair is finished.
func MergeCollinearWalls(walls []floorplan.WallSegment, angleTolDeg, distTolFeet, scaleFactor float64) []floorplan.WallSegment {
	if len(walls) == 0 {
		return nil
	}
	work := append([]floorplan.WallSegment(nil), walls...)
	angleTol := angleTolDeg * math.Pi / 180
	distTol := distTolFeet * scaleFactor

	merged := make([]bool, len(work))
	out := make([]floorplan.WallSegment, 0, len(work))
	for i := range work {
		if merged[i] {
			continue
		}
		current := work[i]
		merged[i] = true

		for changed := true; changed; {
			changed = false
			for j := range work {
				if merged[j] || !canMerge(current, work[j], angleTol, distTol) {
					continue
				}
				current = mergePair(current, work[j], scaleFactor)
				merged[j] = true
				changed = true
			}
		}
		out = append(out, current)
	}
	return out
}

func canMerge(a, b floorplan.WallSegment, angleTol, distTol float64) bool {
	if floorplan.LineAngleDiff(a.Angle(), b.Angle()) > angleTol {
		return false
	}
	return minEndpointDistance(a, b) <= distTol
}

func minEndpointDistance(a, b floorplan.WallSegment) float64 {
	return math.Min(
		math.Min(a.Start.DistanceTo(b.Start), a.Start.DistanceTo(b.End)),
		math.Min(a.End.DistanceTo(b.Start), a.End.DistanceTo(b.End)),
	)
}

// mergePair spans the farthest pair among the four endpoints.
func mergePair(a, b floorplan.WallSegment, scaleFactor float64) floorplan.WallSegment {
	pts := [4]floorplan.Point2D{a.Start, a.End, b.Start, b.End}
	bestI, bestJ, bestD := 0, 1, -1.0
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if d := pts[i].DistanceTo(pts[j]); d > bestD {
				bestI, bestJ, bestD = i, j, d
			}
		}
	}
	return floorplan.WallSegment{
		Start:      pts[bestI],
		End:        pts[bestJ],
		Thickness:  math.Max(a.Thickness, b.Thickness),
		LengthFeet: bestD / scaleFactor,
	}
}
