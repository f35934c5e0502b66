package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "floorplan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(createdAt time.Time) *Run {
	walls := []floorplan.WallSegment{
		{Start: floorplan.Point2D{X: 0, Y: 0}, End: floorplan.Point2D{X: 10, Y: 0}, Thickness: 0.5},
		{Start: floorplan.Point2D{X: 10, Y: 0}, End: floorplan.Point2D{X: 10, Y: 8}, Thickness: 0.5},
	}
	floorplan.RecalculateLengths(walls, 1)
	points := []floorplan.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 8}}
	return &Run{
		Source:     "test",
		CreatedAt:  createdAt,
		DurationMs: 12.5,
		Slice: floorplan.SliceBoxConfig{
			Center:          floorplan.Point3D{X: 5, Y: 4, Z: 4},
			HalfExtents:     floorplan.Vec3{X: 6, Y: 5, Z: 5},
			ThicknessInches: 12,
		},
		Config: floorplan.DefaultWallDetectionConfig(),
		Plan: &floorplan.FloorPlan{
			Walls:    walls,
			Points2D: points,
			Bounds:   floorplan.BoundsOf(points),
			Metadata: floorplan.Metadata{
				PointCount:           len(points),
				WallCount:            len(walls),
				GeneratedAt:          createdAt,
				SliceThicknessInches: 12,
				ScaleFactor:          1,
				DetectionMethod:      floorplan.MethodRANSAC,
			},
		},
	}
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// ===== Tests: Open =====

func TestOpen_MigratesAndAppliesPragmas(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floorplan.db")
	db, err := Open(path)
	require.NoError(t, err)
	store := NewRunStore(db)
	run := testRun(t0)
	require.NoError(t, store.Insert(run))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := NewRunStore(db).Get(run.RunID)
	require.NoError(t, err)
	assert.Len(t, got.Plan.Walls, 2)
}

// ===== Tests: RunStore =====

func TestRunStore_InsertGet(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	run := testRun(t0)
	require.NoError(t, store.Insert(run))
	require.NotEmpty(t, run.RunID, "insert assigns an id")

	got, err := store.Get(run.RunID)
	require.NoError(t, err)

	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, "test", got.Source)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Equal(t, 12.5, got.DurationMs)
	assert.Equal(t, run.Slice, got.Slice)
	assert.Equal(t, run.Config, got.Config)

	assert.Equal(t, run.Plan.Walls, got.Plan.Walls)
	assert.Equal(t, run.Plan.Points2D, got.Plan.Points2D)
	assert.Equal(t, run.Plan.Bounds, got.Plan.Bounds)
	assert.Equal(t, run.Plan.Metadata.DetectionMethod, got.Plan.Metadata.DetectionMethod)
	assert.True(t, got.Plan.Metadata.GeneratedAt.Equal(t0))
}

func TestRunStore_InsertKeepsCallerID(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	run := testRun(t0)
	run.RunID = "kitchen-1"
	require.NoError(t, store.Insert(run))
	assert.Equal(t, "kitchen-1", run.RunID)

	err := store.Insert(testRunWithID("kitchen-1"))
	assert.Error(t, err, "duplicate ids are rejected")
}

func testRunWithID(id string) *Run {
	r := testRun(t0)
	r.RunID = id
	return r
}

func TestRunStore_InsertNilPlan(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	assert.Error(t, store.Insert(&Run{}))
}

func TestRunStore_EmptyPlan(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	run := &Run{Plan: &floorplan.FloorPlan{
		Walls:    []floorplan.WallSegment{},
		Metadata: floorplan.Metadata{DetectionMethod: floorplan.MethodNone, ScaleFactor: 1},
	}}
	require.NoError(t, store.Insert(run))
	assert.False(t, run.CreatedAt.IsZero())

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.NotNil(t, got.Plan.Walls)
	assert.Empty(t, got.Plan.Walls)
}

func TestRunStore_GetNotFound(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	_, err := store.Get("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
}

func TestRunStore_List(t *testing.T) {
	store := NewRunStore(openTestDB(t))
	for i, id := range []string{"a", "b", "c"} {
		run := testRun(t0.Add(time.Duration(i) * time.Minute))
		run.RunID = id
		require.NoError(t, store.Insert(run))
	}

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.Equal(t, 2, all[0].WallCount)
	assert.Equal(t, 3, all[0].PointCount)
	assert.Equal(t, floorplan.MethodRANSAC, all[0].DetectionMethod)
	assert.True(t, all[0].CreatedAt.Equal(t0.Add(2*time.Minute)))

	two, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestRunStore_ListEmpty(t *testing.T) {
	runs, err := NewRunStore(openTestDB(t)).List(10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRunStore_Delete(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db)
	run := testRun(t0)
	require.NoError(t, store.Insert(run))

	require.NoError(t, store.Delete(run.RunID))
	_, err := store.Get(run.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var walls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM floorplan_walls WHERE run_id = ?`, run.RunID).Scan(&walls))
	assert.Zero(t, walls)

	assert.ErrorIs(t, store.Delete(run.RunID), ErrRunNotFound)
}

// ===== Tests: retryOnBusy =====

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error { calls++; return nil })
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("busy then success", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-busy error is not retried", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error { calls++; return errors.New("constraint failed") })
		assert.EqualError(t, err, "constraint failed")
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error { calls++; return errors.New("SQLITE_BUSY") })
		assert.Error(t, err)
		assert.Equal(t, busyRetries, calls)
	})
}
