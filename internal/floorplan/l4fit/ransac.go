package l4fit

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Adaptive RANSAC inlier threshold bounds.
const (
	adaptiveThresholdFactor = 0.003
	minAdaptiveThreshold    = 0.002
	maxAdaptiveThreshold    = 0.02
)

// maxSampleAttempts bounds redraws when a trial picks the same point twice.
const maxSampleAttempts = 10

// ctxCheckInterval is how many trials a worker runs between context checks.
const ctxCheckInterval = 128

// Line is the implicit line A·x + B·y + C = 0 with A² + B² = 1.
type Line struct {
	A, B, C float64
}

// LineThrough returns the normalized line through p and q, or false when the
// points coincide.
func LineThrough(p, q floorplan.Point2D) (Line, bool) {
	a := q.Y - p.Y
	b := p.X - q.X
	norm := math.Hypot(a, b)
	if norm == 0 {
		return Line{}, false
	}
	a /= norm
	b /= norm
	return Line{A: a, B: b, C: -(a*p.X + b*p.Y)}, true
}

// Distance returns the perpendicular distance from p to the line.
func (l Line) Distance(p floorplan.Point2D) float64 {
	return math.Abs(l.A*p.X + l.B*p.Y + l.C)
}

// AdaptiveDistanceThreshold scales the inlier threshold with the plan
// diagonal: clamp(diagonal·0.003, 0.002, 0.02).
func AdaptiveDistanceThreshold(diagonal float64) float64 {
	return floorplan.Clamp(diagonal*adaptiveThresholdFactor, minAdaptiveThreshold, maxAdaptiveThreshold)
}

// RANSACResult is the best line found by one round of trials.
type RANSACResult struct {
	Line    Line
	Inliers []int // indices into the input points, ascending
	Trial   int   // index of the winning trial
}

type trialBest struct {
	line  Line
	count int
	trial int
	found bool
}

// better reports whether b beats a: more inliers, then the lower trial.
func (a trialBest) better(b trialBest) bool {
	if !b.found {
		return false
	}
	if !a.found {
		return true
	}
	return b.count > a.count || (b.count == a.count && b.trial < a.trial)
}

// FitRANSACLine runs iterations trials, each sampling two distinct points and
// counting points within threshold of the line through them, and returns the
// trial with the most inliers.
//
// With workers > 1 the trials are split across goroutines, each drawing from
// its own source seeded from rng; ties are broken by the lowest trial index,
// so a given seed and worker count always produces the same line.
//
// It reports false when fewer than two points are given or no trial could
// draw a usable pair.
func FitRANSACLine(ctx context.Context, points []floorplan.Point2D, iterations int, threshold float64, rng *rand.Rand, workers int) (RANSACResult, bool, error) {
	if len(points) < 2 || iterations < 1 {
		return RANSACResult{}, false, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > iterations {
		workers = iterations
	}

	var best trialBest
	if workers == 1 {
		b, err := runTrials(ctx, points, threshold, rng, 0, 1, iterations)
		if err != nil {
			return RANSACResult{}, false, err
		}
		best = b
	} else {
		seeds := make([]int64, workers)
		for w := range seeds {
			seeds[w] = rng.Int63()
		}
		results := make([]trialBest, workers)
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				r := rand.New(rand.NewSource(seeds[w]))
				b, err := runTrials(gctx, points, threshold, r, w, workers, iterations)
				results[w] = b
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return RANSACResult{}, false, err
		}
		for _, b := range results {
			if best.better(b) {
				best = b
			}
		}
	}

	if !best.found {
		return RANSACResult{}, false, nil
	}
	return RANSACResult{
		Line:    best.line,
		Inliers: inliers(points, best.line, threshold),
		Trial:   best.trial,
	}, true, nil
}

// runTrials evaluates trials first, first+stride, ... below iterations.
func runTrials(ctx context.Context, points []floorplan.Point2D, threshold float64, rng *rand.Rand, first, stride, iterations int) (trialBest, error) {
	var best trialBest
	n := len(points)
	for trial, k := first, 0; trial < iterations; trial, k = trial+stride, k+1 {
		if k%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return best, err
			}
		}

		i := rng.Intn(n)
		j := rng.Intn(n)
		for attempt := 1; j == i && attempt < maxSampleAttempts; attempt++ {
			j = rng.Intn(n)
		}
		if j == i {
			continue
		}
		line, ok := LineThrough(points[i], points[j])
		if !ok {
			continue
		}

		count := 0
		for _, p := range points {
			if line.Distance(p) <= threshold {
				count++
			}
		}
		cand := trialBest{line: line, count: count, trial: trial, found: true}
		if best.better(cand) {
			best = cand
		}
	}
	return best, nil
}

func inliers(points []floorplan.Point2D, line Line, threshold float64) []int {
	var idx []int
	for i, p := range points {
		if line.Distance(p) <= threshold {
			idx = append(idx, i)
		}
	}
	return idx
}

// RANSACStats summarises a DetectRANSAC run.
type RANSACStats struct {
	Rounds            int
	Rejected          int // rounds whose inliers did not make a wall
	DistanceThreshold float64
}

// DetectRANSAC finds walls by repeated RANSAC rounds on the points not yet
// claimed by an earlier round. Each round's inliers are removed whether or
// not their fit makes a wall. The inlier threshold adapts to the plan
// diagonal and overrides cfg.DistanceThreshold. The context is checked
// between rounds.
func DetectRANSAC(ctx context.Context, points []floorplan.Point2D, cfg floorplan.WallDetectionConfig, scaleFactor float64, rng *rand.Rand, sink floorplan.Sink) ([]floorplan.WallSegment, RANSACStats, error) {
	sink = floorplan.OrNop(sink)
	stats := RANSACStats{
		DistanceThreshold: AdaptiveDistanceThreshold(floorplan.BoundsOf(points).Diagonal()),
	}

	remaining := append([]floorplan.Point2D(nil), points...)
	var walls []floorplan.WallSegment
	for round := 0; round < cfg.MaxWalls; round++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if len(remaining) < cfg.MinPointsPerWall {
			break
		}

		res, ok, err := FitRANSACLine(ctx, remaining, cfg.RANSACIterations, stats.DistanceThreshold, rng, cfg.RANSACWorkers)
		if err != nil {
			return nil, stats, err
		}
		if !ok || len(res.Inliers) < cfg.MinPointsPerWall {
			sink.Tracef("ransac round %d: best line has %d inliers, below %d; stopping",
				round, len(res.Inliers), cfg.MinPointsPerWall)
			break
		}
		stats.Rounds++

		inlierPts := make([]floorplan.Point2D, len(res.Inliers))
		for k, idx := range res.Inliers {
			inlierPts[k] = remaining[idx]
		}
		if wall, ok := FitLine(inlierPts, scaleFactor); ok && wall.LengthFeet >= cfg.MinWallLengthFeet {
			walls = append(walls, wall)
			sink.Tracef("ransac round %d: wall %.2f ft from %d inliers", round, wall.LengthFeet, len(inlierPts))
		} else {
			stats.Rejected++
			sink.Tracef("ransac round %d: %d inliers rejected", round, len(inlierPts))
		}

		remaining = removeIndices(remaining, res.Inliers)
	}
	return walls, stats, nil
}

// removeIndices returns points without the entries at the ascending indices
// idx. The input slice is reused.
func removeIndices(points []floorplan.Point2D, idx []int) []floorplan.Point2D {
	out := points[:0]
	k := 0
	for i, p := range points {
		if k < len(idx) && idx[k] == i {
			k++
			continue
		}
		out = append(out, p)
	}
	return out
}
