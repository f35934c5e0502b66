package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// ErrRunNotFound is returned by Get and Delete for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Run is one persisted pipeline invocation: its inputs and the plan it
// produced.
type Run struct {
	RunID      string                        `json:"run_id"`
	Source     string                        `json:"source,omitempty"`
	CreatedAt  time.Time                     `json:"created_at"`
	DurationMs float64                       `json:"duration_ms"`
	Slice      floorplan.SliceBoxConfig      `json:"slice"`
	Config     floorplan.WallDetectionConfig `json:"config"`
	Plan       *floorplan.FloorPlan          `json:"plan"`
}

// RunSummary is the List projection of a Run.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	Source          string    `json:"source,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	DurationMs      float64   `json:"duration_ms"`
	DetectionMethod string    `json:"detection_method"`
	WallCount       int       `json:"wall_count"`
	PointCount      int       `json:"point_count"`
}

// RunStore persists runs. Walls live in their own table; the rest of the
// plan is stored as JSON.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore over an opened, migrated database.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB}
}

// Insert stores run. An empty RunID is replaced with a new UUID and a zero
// CreatedAt with the current time; both are written back to run.
func (s *RunStore) Insert(run *Run) error {
	if run.Plan == nil {
		return fmt.Errorf("insert run: plan is nil")
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	sliceJSON, err := json.Marshal(run.Slice)
	if err != nil {
		return fmt.Errorf("encode slice: %w", err)
	}
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	body := *run.Plan
	body.Walls = nil
	planJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	err = retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO floorplan_runs (
				run_id, source, created_at_ns, duration_ms, detection_method,
				wall_count, point_count, scale_factor,
				slice_json, config_json, plan_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID,
			run.Source,
			run.CreatedAt.UnixNano(),
			run.DurationMs,
			run.Plan.Metadata.DetectionMethod,
			len(run.Plan.Walls),
			run.Plan.Metadata.PointCount,
			run.Plan.Metadata.ScaleFactor,
			string(sliceJSON),
			string(configJSON),
			string(planJSON),
		)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO floorplan_walls (
				run_id, wall_index, start_x, start_y, end_x, end_y, thickness, length_feet
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, w := range run.Plan.Walls {
			if _, err := stmt.Exec(run.RunID, i, w.Start.X, w.Start.Y, w.End.X, w.End.Y, w.Thickness, w.LengthFeet); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

// Get loads a run with its full plan.
func (s *RunStore) Get(runID string) (*Run, error) {
	var (
		run                             Run
		createdAtNs                     int64
		sliceJSON, configJSON, planJSON string
	)
	err := s.db.QueryRow(`
		SELECT run_id, source, created_at_ns, duration_ms, slice_json, config_json, plan_json
		FROM floorplan_runs
		WHERE run_id = ?`, runID).Scan(
		&run.RunID,
		&run.Source,
		&createdAtNs,
		&run.DurationMs,
		&sliceJSON,
		&configJSON,
		&planJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.CreatedAt = time.Unix(0, createdAtNs).UTC()

	if err := json.Unmarshal([]byte(sliceJSON), &run.Slice); err != nil {
		return nil, fmt.Errorf("decode slice for run %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("decode config for run %s: %w", runID, err)
	}
	var plan floorplan.FloorPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("decode plan for run %s: %w", runID, err)
	}
	walls, err := s.walls(runID)
	if err != nil {
		return nil, err
	}
	plan.Walls = walls
	run.Plan = &plan
	return &run, nil
}

// walls returns the run's walls in their original order, never nil.
func (s *RunStore) walls(runID string) ([]floorplan.WallSegment, error) {
	rows, err := s.db.Query(`
		SELECT start_x, start_y, end_x, end_y, thickness, length_feet
		FROM floorplan_walls
		WHERE run_id = ?
		ORDER BY wall_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query walls for run %s: %w", runID, err)
	}
	defer rows.Close()

	walls := []floorplan.WallSegment{}
	for rows.Next() {
		var w floorplan.WallSegment
		if err := rows.Scan(&w.Start.X, &w.Start.Y, &w.End.X, &w.End.Y, &w.Thickness, &w.LengthFeet); err != nil {
			return nil, fmt.Errorf("scan wall for run %s: %w", runID, err)
		}
		walls = append(walls, w)
	}
	return walls, rows.Err()
}

// List returns the most recent runs first. limit <= 0 means
// DefaultListLimit.
func (s *RunStore) List(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(`
		SELECT run_id, source, created_at_ns, duration_ms, detection_method, wall_count, point_count
		FROM floorplan_runs
		ORDER BY created_at_ns DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var createdAtNs int64
		if err := rows.Scan(&r.RunID, &r.Source, &createdAtNs, &r.DurationMs, &r.DetectionMethod, &r.WallCount, &r.PointCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAtNs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a run and its walls.
func (s *RunStore) Delete(runID string) error {
	var affected int64
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM floorplan_walls WHERE run_id = ?`, runID); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM floorplan_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
