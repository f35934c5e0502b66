package l5topology

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l3cluster"
)

const (
	// parallelEpsilon is the cross-product magnitude below which two
	// direction vectors are treated as parallel.
	parallelEpsilon = 1e-10

	// CollinearAngleRad separates L-corners (intersection snap) from
	// near-collinear joints (mean snap), about 23°.
	CollinearAngleRad = 0.4

	// maxSnapReach bounds how far, in multiples of the snap threshold, an
	// intersection may lie from the endpoints it replaces.
	maxSnapReach = 3.0

	scoreEpsilon = 1e-9
)

// LineIntersection returns the intersection of the infinite lines through
// a and b, solved with Cramer's rule. Parallel lines have none.
func LineIntersection(a, b floorplan.WallSegment) (floorplan.Point2D, bool) {
	d1, d2 := a.Direction(), b.Direction()
	cross := r2.Cross(d1, d2)
	if math.Abs(cross) < parallelEpsilon {
		return floorplan.Point2D{}, false
	}
	t := r2.Cross(r2.Sub(b.Start.Vec(), a.Start.Vec()), d2) / cross
	return floorplan.Point2DFromVec(r2.Add(a.Start.Vec(), r2.Scale(t, d1))), true
}

// unionFind is a disjoint-set forest over an index arena.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[x] != root {
		uf.parent[x], x = root, uf.parent[x]
	}
	return root
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// endpointArena lists every wall endpoint: index 2i is wall i's start and
// 2i+1 its end.
func endpointArena(walls []floorplan.WallSegment) []floorplan.EndpointRef {
	refs := make([]floorplan.EndpointRef, 0, 2*len(walls))
	for i, w := range walls {
		refs = append(refs,
			floorplan.EndpointRef{WallIndex: i, IsStart: true, Point: w.Start},
			floorplan.EndpointRef{WallIndex: i, IsStart: false, Point: w.End},
		)
	}
	return refs
}

// SnapStats counts what SnapCorners did.
type SnapStats struct {
	Groups       int // endpoint groups spanning two or more walls
	Intersection int // groups snapped to a line intersection
	Mean         int // groups snapped to the mean of their endpoints
	Skipped      int // L-corners left alone because the intersection was too far
}

// SnapCorners moves wall endpoints that lie within snapThresholdFeet of an
// endpoint of another wall onto one shared vertex:
//
//   - two walls meeting at more than CollinearAngleRad snap to the
//     intersection of their lines, if every endpoint in the group lies
//     within 3× the threshold of it, and are left alone otherwise
//   - two near-collinear walls snap to the mean of the group's endpoints
//   - three or more walls snap to the pairwise intersection closest on
//     average to the group's endpoints, or to the mean if none is near
//
// The input is not modified and every LengthFeet is recalculated last.
func SnapCorners(walls []floorplan.WallSegment, snapThresholdFeet, scaleFactor float64) ([]floorplan.WallSegment, SnapStats) {
	var stats SnapStats
	orig := append([]floorplan.WallSegment(nil), walls...)
	work := append([]floorplan.WallSegment(nil), walls...)
	threshold := snapThresholdFeet * scaleFactor
	if len(work) < 2 || !(threshold > 0) {
		floorplan.RecalculateLengths(work, scaleFactor)
		return work, stats
	}

	refs := endpointArena(orig)
	pts := make([]floorplan.Point2D, len(refs))
	for i, r := range refs {
		pts[i] = r.Point
	}

	uf := newUnionFind(len(refs))
	si := l3cluster.NewSpatialIndex(threshold)
	si.Build(pts)
	for i := range refs {
		for _, j := range si.Within(pts[i], threshold) {
			if j > i && refs[j].WallIndex != refs[i].WallIndex {
				uf.union(i, j)
			}
		}
	}

	// Groups in order of their lowest member so results never depend on
	// map iteration.
	groupOf := make(map[int]int)
	var groups [][]int
	for i := range refs {
		root := uf.find(i)
		g, ok := groupOf[root]
		if !ok {
			g = len(groups)
			groupOf[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	for _, members := range groups {
		wallIDs := distinctWalls(refs, members)
		if len(wallIDs) < 2 {
			continue
		}
		stats.Groups++

		target, kind := snapTarget(orig, refs, members, wallIDs, threshold)
		switch kind {
		case snapSkip:
			stats.Skipped++
			continue
		case snapIntersection:
			stats.Intersection++
		case snapMean:
			stats.Mean++
		}
		applySnap(work, refs, members, target)
	}

	floorplan.RecalculateLengths(work, scaleFactor)
	return work, stats
}

type snapKind int

const (
	snapSkip snapKind = iota
	snapIntersection
	snapMean
)

func distinctWalls(refs []floorplan.EndpointRef, members []int) []int {
	var ids []int
	for _, m := range members {
		w := refs[m].WallIndex
		seen := false
		for _, id := range ids {
			if id == w {
				seen = true
				break
			}
		}
		if !seen {
			ids = append(ids, w)
		}
	}
	return ids
}

func snapTarget(walls []floorplan.WallSegment, refs []floorplan.EndpointRef, members, wallIDs []int, threshold float64) (floorplan.Point2D, snapKind) {
	reach := maxSnapReach * threshold
	mean := meanPoint(refs, members)

	if len(wallIDs) == 2 {
		a, b := walls[wallIDs[0]], walls[wallIDs[1]]
		if floorplan.LineAngleDiff(a.Angle(), b.Angle()) <= CollinearAngleRad {
			return mean, snapMean
		}
		p, ok := LineIntersection(a, b)
		if !ok || !withinReach(refs, members, p, reach) {
			return floorplan.Point2D{}, snapSkip
		}
		return p, snapIntersection
	}

	best, bestScore, found := floorplan.Point2D{}, 0.0, false
	for i := 0; i < len(wallIDs); i++ {
		for j := i + 1; j < len(wallIDs); j++ {
			a, b := walls[wallIDs[i]], walls[wallIDs[j]]
			if floorplan.LineAngleDiff(a.Angle(), b.Angle()) <= CollinearAngleRad {
				continue
			}
			p, ok := LineIntersection(a, b)
			if !ok || !withinReach(refs, members, p, reach) {
				continue
			}
			score := 1 / (meanDistance(refs, members, p) + scoreEpsilon)
			if !found || score > bestScore {
				best, bestScore, found = p, score, true
			}
		}
	}
	if found {
		return best, snapIntersection
	}
	return mean, snapMean
}

func meanPoint(refs []floorplan.EndpointRef, members []int) floorplan.Point2D {
	var sum r2.Vec
	for _, m := range members {
		sum = r2.Add(sum, refs[m].Point.Vec())
	}
	return floorplan.Point2DFromVec(r2.Scale(1/float64(len(members)), sum))
}

func meanDistance(refs []floorplan.EndpointRef, members []int, p floorplan.Point2D) float64 {
	total := 0.0
	for _, m := range members {
		total += refs[m].Point.DistanceTo(p)
	}
	return total / float64(len(members))
}

func withinReach(refs []floorplan.EndpointRef, members []int, p floorplan.Point2D, reach float64) bool {
	for _, m := range members {
		if refs[m].Point.DistanceTo(p) > reach {
			return false
		}
	}
	return true
}

// applySnap moves the group's endpoints to target. A wall with both
// endpoints in the group only moves the one nearer the target so it keeps
// its length.
func applySnap(work []floorplan.WallSegment, refs []floorplan.EndpointRef, members []int, target floorplan.Point2D) {
	perWall := make(map[int][]int, len(members))
	var order []int
	for _, m := range members {
		w := refs[m].WallIndex
		if _, ok := perWall[w]; !ok {
			order = append(order, w)
		}
		perWall[w] = append(perWall[w], m)
	}

	for _, w := range order {
		ms := perWall[w]
		pick := ms[0]
		if len(ms) > 1 && refs[ms[1]].Point.DistanceTo(target) < refs[pick].Point.DistanceTo(target) {
			pick = ms[1]
		}
		if refs[pick].IsStart {
			work[w].Start = target
		} else {
			work[w].End = target
		}
	}
}
