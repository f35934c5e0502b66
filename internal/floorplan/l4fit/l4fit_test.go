package l4fit

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// =============================================================================
// Fixtures
// =============================================================================

// noisyLineWithOutliers returns 200 points within 0.001 of y = 0.5x + 0.2
// over x ∈ [0, 1], followed by 50 uniform outliers in the unit square.
func noisyLineWithOutliers(seed int64) []floorplan.Point2D {
	r := rand.New(rand.NewSource(seed))
	pts := make([]floorplan.Point2D, 0, 250)
	for i := 0; i < 200; i++ {
		x := float64(i) / 199
		noise := (r.Float64()*2 - 1) * 0.001
		pts = append(pts, floorplan.Point2D{X: x, Y: 0.5*x + 0.2 + noise})
	}
	for i := 0; i < 50; i++ {
		pts = append(pts, floorplan.Point2D{X: r.Float64(), Y: r.Float64()})
	}
	return pts
}

// room returns the outline of a 10×8 rectangle, 199 points per wall, with
// the corner points left out.
func room() []floorplan.Point2D {
	var pts []floorplan.Point2D
	for i := 1; i < 200; i++ {
		x := float64(i) * 0.05
		y := float64(i) * 0.04
		pts = append(pts,
			floorplan.Point2D{X: x, Y: 0},
			floorplan.Point2D{X: x, Y: 8},
			floorplan.Point2D{X: 0, Y: y},
			floorplan.Point2D{X: 10, Y: y},
		)
	}
	return pts
}

// sawtooth returns 200 points along x ∈ [0, 10) whose y cycles through ten
// levels 0.05 apart. No straight line passes through 30 of them, but the
// run is one dense band.
func sawtooth() []floorplan.Point2D {
	pts := make([]floorplan.Point2D, 200)
	for i := range pts {
		pts[i] = floorplan.Point2D{X: float64(i) * 0.05, Y: 0.05*float64(i%10) - 0.225}
	}
	return pts
}

func lengths(walls []floorplan.WallSegment) []float64 {
	out := make([]float64, len(walls))
	for i, w := range walls {
		out[i] = w.LengthFeet
	}
	sort.Float64s(out)
	return out
}

// =============================================================================
// Tests: PCA Line Fitting
// =============================================================================

func TestFitLine_Horizontal(t *testing.T) {
	var pts []floorplan.Point2D
	for i := 0; i <= 10; i++ {
		pts = append(pts, floorplan.Point2D{X: float64(i), Y: 0})
	}
	wall, ok := FitLine(pts, 1)
	require.True(t, ok)
	assert.InDelta(t, 0, wall.Start.X, 1e-9)
	assert.InDelta(t, 10, wall.End.X, 1e-9)
	assert.InDelta(t, 0, wall.Start.Y, 1e-9)
	assert.InDelta(t, 10, wall.LengthFeet, 1e-9)
	assert.InDelta(t, 0, wall.Thickness, 1e-9)
}

func TestFitLine_ThicknessFromSpread(t *testing.T) {
	var pts []floorplan.Point2D
	for i := 0; i <= 10; i++ {
		pts = append(pts,
			floorplan.Point2D{X: float64(i), Y: 0.1},
			floorplan.Point2D{X: float64(i), Y: -0.1},
		)
	}
	wall, ok := FitLine(pts, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.2, wall.Thickness, 1e-9)
	assert.InDelta(t, 10, wall.LengthFeet, 1e-9)
}

func TestFitLine_DiagonalWithScale(t *testing.T) {
	var pts []floorplan.Point2D
	for i := 0; i <= 10; i++ {
		pts = append(pts, floorplan.Point2D{X: float64(i), Y: float64(i)})
	}
	wall, ok := FitLine(pts, 2)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(200)/2, wall.LengthFeet, 1e-9)
	assert.InDelta(t, wall.Length()/2, wall.LengthFeet, 1e-9)
	assert.InDelta(t, math.Pi/4, floorplan.LineAngleDiff(wall.Angle(), 0), 1e-9)
}

func TestFitLine_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		points []floorplan.Point2D
	}{
		{"empty", nil},
		{"single point", []floorplan.Point2D{{X: 1, Y: 1}}},
		{"coincident points", []floorplan.Point2D{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
		{"shorter than one foot", []floorplan.Point2D{{X: 0, Y: 0}, {X: 0.25, Y: 0}, {X: 0.5, Y: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := FitLine(tt.points, 1)
			assert.False(t, ok)
		})
	}
}

// =============================================================================
// Tests: RANSAC
// =============================================================================

func TestLineThrough(t *testing.T) {
	l, ok := LineThrough(floorplan.Point2D{X: 0, Y: 1}, floorplan.Point2D{X: 4, Y: 1})
	require.True(t, ok)
	assert.InDelta(t, 1, l.A*l.A+l.B*l.B, 1e-12)
	assert.InDelta(t, 2, l.Distance(floorplan.Point2D{X: 7, Y: 3}), 1e-12)
	assert.InDelta(t, 0, l.Distance(floorplan.Point2D{X: -3, Y: 1}), 1e-12)

	_, ok = LineThrough(floorplan.Point2D{X: 2, Y: 2}, floorplan.Point2D{X: 2, Y: 2})
	assert.False(t, ok)
}

func TestAdaptiveDistanceThreshold(t *testing.T) {
	tests := []struct {
		diagonal float64
		want     float64
	}{
		{0, 0.002},
		{0.5, 0.002},
		{5, 0.015},
		{100, 0.02},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, AdaptiveDistanceThreshold(tt.diagonal), 1e-12, "diagonal=%v", tt.diagonal)
	}
}

func TestFitRANSACLine_ConvergesDespiteOutliers(t *testing.T) {
	pts := noisyLineWithOutliers(7)
	for _, workers := range []int{1, 4} {
		res, ok, err := FitRANSACLine(context.Background(), pts, 1000, 0.01, rand.New(rand.NewSource(42)), workers)
		require.NoError(t, err)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(res.Inliers), 190, "workers=%d", workers)
		assert.True(t, sort.IntsAreSorted(res.Inliers))
	}
}

func TestFitRANSACLine_Deterministic(t *testing.T) {
	pts := noisyLineWithOutliers(3)
	run := func() RANSACResult {
		res, ok, err := FitRANSACLine(context.Background(), pts, 300, 0.01, rand.New(rand.NewSource(9)), 3)
		require.NoError(t, err)
		require.True(t, ok)
		return res
	}
	assert.Equal(t, run(), run())
}

func TestFitRANSACLine_Degenerate(t *testing.T) {
	_, ok, err := FitRANSACLine(context.Background(), []floorplan.Point2D{{X: 1}}, 100, 0.01, rand.New(rand.NewSource(1)), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Two coincident points never yield a line.
	same := []floorplan.Point2D{{X: 1, Y: 1}, {X: 1, Y: 1}}
	_, ok, err = FitRANSACLine(context.Background(), same, 100, 0.01, rand.New(rand.NewSource(1)), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFitRANSACLine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		_, _, err := FitRANSACLine(ctx, noisyLineWithOutliers(1), 1000, 0.01, rand.New(rand.NewSource(1)), workers)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestRemoveIndices(t *testing.T) {
	pts := []floorplan.Point2D{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}
	got := removeIndices(pts, []int{0, 2, 4})
	assert.Equal(t, []floorplan.Point2D{{X: 1}, {X: 3}}, got)
}

func TestDetectRANSAC_Room(t *testing.T) {
	cfg := floorplan.DefaultWallDetectionConfig()
	for _, workers := range []int{1, 3} {
		cfg.RANSACWorkers = workers
		walls, stats, err := DetectRANSAC(context.Background(), room(), cfg, 1, rand.New(rand.NewSource(1)), nil)
		require.NoError(t, err)
		require.Len(t, walls, 4, "workers=%d", workers)
		assert.Equal(t, 4, stats.Rounds)
		assert.Equal(t, 0, stats.Rejected)
		assert.InDelta(t, 0.02, stats.DistanceThreshold, 1e-12)

		got := lengths(walls)
		assert.InDeltaSlice(t, []float64{7.92, 7.92, 9.9, 9.9}, got, 1e-6)
		for _, w := range walls {
			assert.InDelta(t, 0, w.Thickness, 1e-6)
		}
	}
}

func TestDetectRANSAC_MaxWallsBoundsRounds(t *testing.T) {
	cfg := floorplan.DefaultWallDetectionConfig()
	cfg.MaxWalls = 2
	walls, stats, err := DetectRANSAC(context.Background(), room(), cfg, 1, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	assert.Len(t, walls, 2)
	assert.Equal(t, 2, stats.Rounds)
}

func TestDetectRANSAC_DoesNotModifyInput(t *testing.T) {
	pts := room()
	orig := append([]floorplan.Point2D(nil), pts...)
	_, _, err := DetectRANSAC(context.Background(), pts, floorplan.DefaultWallDetectionConfig(), 1, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	assert.Equal(t, orig, pts)
}

// =============================================================================
// Tests: DBSCAN Route and Fallback
// =============================================================================

func TestDetectDBSCAN_ParallelWalls(t *testing.T) {
	var pts []floorplan.Point2D
	for i := 0; i <= 200; i++ {
		x := float64(i) * 0.05
		pts = append(pts, floorplan.Point2D{X: x, Y: 0}, floorplan.Point2D{X: x, Y: 5})
	}
	cfg := floorplan.DefaultWallDetectionConfig()
	cfg.DBSCANEps = 0.1
	cfg.DBSCANMinPoints = 3

	walls, stats, err := DetectDBSCAN(context.Background(), pts, cfg, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Clusters)
	require.Len(t, walls, 2)
	assert.InDeltaSlice(t, []float64{10, 10}, lengths(walls), 1e-9)

	cfg.MaxWalls = 1
	walls, _, err = DetectDBSCAN(context.Background(), pts, cfg, 1)
	require.NoError(t, err)
	assert.Len(t, walls, 1)
}

func TestDetectDBSCAN_SplitsLShape(t *testing.T) {
	var pts []floorplan.Point2D
	for i := 0; i < 50; i++ {
		pts = append(pts, floorplan.Point2D{X: float64(i) * 0.1, Y: 0})
	}
	for i := 1; i <= 50; i++ {
		pts = append(pts, floorplan.Point2D{X: 5, Y: float64(i) * 0.1})
	}
	cfg := floorplan.DefaultWallDetectionConfig()
	cfg.DBSCANEps = 0.15
	cfg.DBSCANMinPoints = 3

	walls, stats, err := DetectDBSCAN(context.Background(), pts, cfg, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Clusters)
	require.Len(t, walls, 2)
	assert.Greater(t, floorplan.LineAngleDiff(walls[0].Angle(), walls[1].Angle()), math.Pi/3)
}

func TestShouldFallBack(t *testing.T) {
	tests := []struct {
		points, walls int
		want          bool
	}{
		{101, 1, true},
		{500, 0, true},
		{100, 1, false},
		{500, 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldFallBack(tt.points, tt.walls), "points=%d walls=%d", tt.points, tt.walls)
	}
}

func TestDetectWalls_Empty(t *testing.T) {
	det, err := DetectWalls(context.Background(), nil, floorplan.DefaultWallDetectionConfig(), 1, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	assert.Empty(t, det.Walls)
	assert.Equal(t, floorplan.MethodNone, det.Method)
}

func TestDetectWalls_RANSACSufficient(t *testing.T) {
	det, err := DetectWalls(context.Background(), room(), floorplan.DefaultWallDetectionConfig(), 1, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	assert.Equal(t, floorplan.MethodRANSAC, det.Method)
	assert.Len(t, det.Walls, 4)
	assert.Equal(t, -1, det.DBSCANWalls, "fallback should not run")
}

func TestDetectWalls_FallbackKeepsStrongerRANSAC(t *testing.T) {
	// One straight wall: RANSAC finds it, the fallback runs but the adaptive
	// DBSCAN parameters leave every point as noise.
	var pts []floorplan.Point2D
	for i := 0; i < 200; i++ {
		pts = append(pts, floorplan.Point2D{X: float64(i) * 0.05, Y: 0})
	}
	det, err := DetectWalls(context.Background(), pts, floorplan.DefaultWallDetectionConfig(), 1, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	assert.Equal(t, floorplan.MethodRANSAC, det.Method)
	assert.Equal(t, 1, det.RANSACWalls)
	assert.Equal(t, 0, det.DBSCANWalls)
	assert.Len(t, det.Walls, 1)
}

func TestDetectWalls_FallbackToDBSCAN(t *testing.T) {
	cfg := floorplan.DefaultWallDetectionConfig()
	cfg.DBSCANEps = 0.6
	cfg.DBSCANMinPoints = 5

	det, err := DetectWalls(context.Background(), sawtooth(), cfg, 1, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, det.RANSACWalls)
	assert.Equal(t, floorplan.MethodDBSCAN, det.Method)
	require.Len(t, det.Walls, 1)
	assert.InDelta(t, 9.95, det.Walls[0].LengthFeet, 0.05)
}

func TestDetectWalls_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DetectWalls(ctx, room(), floorplan.DefaultWallDetectionConfig(), 1, rand.New(rand.NewSource(1)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
