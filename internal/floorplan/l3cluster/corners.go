package l3cluster

import (
	"math"
	"sort"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Corner splitting limits.
const (
	MinSplitClusterSize = 20 // smaller clusters are returned intact
	MinSplitWindow      = 10
	MinSegmentBeforeCut = 15
	MinSubSegmentSize   = 10
)

// SplitAtCorners separates a cluster whose points run along two walls that
// meet at an angle. Points are ordered along the cluster's principal axis
// and the local line angle of a trailing window is compared with the
// following window; the run is cut where the two differ by more than
// toleranceDeg. Sub-segments shorter than MinSubSegmentSize are dropped.
//
// This only detects bends in an ordered run. It is not a general corner
// detector.
func SplitAtCorners(points []floorplan.Point2D, toleranceDeg float64) [][]floorplan.Point2D {
	n := len(points)
	if n < MinSplitClusterSize {
		return [][]floorplan.Point2D{points}
	}
	axis, ok := floorplan.FitPrincipalAxis(points)
	if !ok {
		return [][]floorplan.Point2D{points}
	}

	type projected struct {
		t float64
		p floorplan.Point2D
	}
	proj := make([]projected, n)
	for i, p := range points {
		proj[i] = projected{t: axis.Project(p), p: p}
	}
	sort.SliceStable(proj, func(i, j int) bool { return proj[i].t < proj[j].t })
	sorted := make([]floorplan.Point2D, n)
	for i := range proj {
		sorted[i] = proj[i].p
	}

	window := n / 10
	if window < MinSplitWindow {
		window = MinSplitWindow
	}
	tolerance := toleranceDeg * math.Pi / 180

	var segments [][]floorplan.Point2D
	start := 0
	for i := window; i+window <= n; i++ {
		if i-start < MinSegmentBeforeCut {
			continue
		}
		before, ok1 := floorplan.FitPrincipalAxis(sorted[i-window : i])
		after, ok2 := floorplan.FitPrincipalAxis(sorted[i : i+window])
		if !ok1 || !ok2 {
			continue
		}
		if floorplan.LineAngleDiff(before.Angle(), after.Angle()) > tolerance {
			segments = append(segments, sorted[start:i])
			start = i
		}
	}
	segments = append(segments, sorted[start:])

	kept := segments[:0]
	for _, s := range segments {
		if len(s) >= MinSubSegmentSize {
			kept = append(kept, s)
		}
	}
	return kept
}
