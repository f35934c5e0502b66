package l4fit

import (
	"context"
	"math/rand"
	"sort"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l3cluster"
)

// FallbackMinPoints is the point count above which too few RANSAC walls
// trigger the DBSCAN route.
const FallbackMinPoints = 100

// fallbackMinWalls is the RANSAC wall count below which the fallback runs.
const fallbackMinWalls = 2

// DBSCANStats summarises a DetectDBSCAN run.
type DBSCANStats struct {
	Params   l3cluster.Params
	Clusters int
	Segments int
}

// DetectDBSCAN finds walls by density clustering, splitting each cluster at
// corners and fitting a line to every sub-segment. Walls shorter than
// cfg.MinWallLengthFeet are dropped and at most cfg.MaxWalls of the longest
// are kept.
func DetectDBSCAN(ctx context.Context, points []floorplan.Point2D, cfg floorplan.WallDetectionConfig, scaleFactor float64) ([]floorplan.WallSegment, DBSCANStats, error) {
	stats := DBSCANStats{Params: l3cluster.Resolve(points, cfg.DBSCANEps, cfg.DBSCANMinPoints)}

	clusters, err := l3cluster.DBSCAN(ctx, points, stats.Params)
	if err != nil {
		return nil, stats, err
	}
	stats.Clusters = len(clusters)

	var walls []floorplan.WallSegment
	for _, c := range clusters {
		for _, seg := range l3cluster.SplitAtCorners(c.Points, cfg.CornerSplitAngleDeg) {
			stats.Segments++
			wall, ok := FitLine(seg, scaleFactor)
			if ok && wall.LengthFeet >= cfg.MinWallLengthFeet {
				walls = append(walls, wall)
			}
		}
	}

	if len(walls) > cfg.MaxWalls {
		sort.SliceStable(walls, func(i, j int) bool { return walls[i].LengthFeet > walls[j].LengthFeet })
		walls = walls[:cfg.MaxWalls]
	}
	return walls, stats, nil
}

// Detection is the outcome of DetectWalls.
type Detection struct {
	Walls       []floorplan.WallSegment
	Method      string // floorplan.MethodRANSAC, MethodDBSCAN or MethodNone
	RANSACWalls int
	DBSCANWalls int // -1 when the fallback did not run
	RANSAC      RANSACStats
	DBSCAN      DBSCANStats
}

// shouldFallBack reports whether a RANSAC result is weak enough to retry
// with DBSCAN.
func shouldFallBack(pointCount, ransacWalls int) bool {
	return ransacWalls < fallbackMinWalls && pointCount > FallbackMinPoints
}

// DetectWalls runs RANSAC and, if it finds fewer than two walls on more than
// FallbackMinPoints points, the DBSCAN route as well, keeping whichever
// produced more walls. RANSAC wins ties.
func DetectWalls(ctx context.Context, points []floorplan.Point2D, cfg floorplan.WallDetectionConfig, scaleFactor float64, rng *rand.Rand, sink floorplan.Sink) (Detection, error) {
	sink = floorplan.OrNop(sink)
	det := Detection{Method: floorplan.MethodNone, DBSCANWalls: -1}
	if len(points) < 2 {
		return det, nil
	}

	walls, rstats, err := DetectRANSAC(ctx, points, cfg, scaleFactor, rng, sink)
	if err != nil {
		return det, err
	}
	det.Walls, det.Method, det.RANSACWalls, det.RANSAC = walls, floorplan.MethodRANSAC, len(walls), rstats
	sink.Diagf("ransac: %d walls in %d rounds (threshold=%.4f, rejected=%d)",
		len(walls), rstats.Rounds, rstats.DistanceThreshold, rstats.Rejected)

	if !shouldFallBack(len(points), len(walls)) {
		return det, nil
	}

	dwalls, dstats, err := DetectDBSCAN(ctx, points, cfg, scaleFactor)
	if err != nil {
		return det, err
	}
	det.DBSCANWalls, det.DBSCAN = len(dwalls), dstats
	sink.Diagf("dbscan fallback: %d walls from %d clusters, %d segments (eps=%.4f, minPoints=%d)",
		len(dwalls), dstats.Clusters, dstats.Segments, dstats.Params.Eps, dstats.Params.MinPoints)

	if len(dwalls) > len(walls) {
		det.Walls, det.Method = dwalls, floorplan.MethodDBSCAN
	}
	return det, nil
}
