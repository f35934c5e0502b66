package floorplan

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid floor plan configuration")

// Defaults for WallDetectionConfig.
const (
	DefaultDistanceThreshold          = 0.01
	DefaultMinWallLengthFeet          = 2.0
	DefaultMaxWalls                   = 50
	DefaultRANSACIterations           = 1000
	DefaultMinPointsPerWall           = 30
	DefaultSnapThresholdFeet          = 0.5
	DefaultMergeAngleToleranceDeg     = 5.0
	DefaultMergeDistanceToleranceFeet = 0.5
	DefaultCornerSplitAngleDeg        = 20.0
	DefaultRANSACWorkers              = 1
	DefaultSeed                       = 1
)

// WallDetectionConfig holds the tunable thresholds of one run.
// A zero DBSCANEps or DBSCANMinPoints selects adaptive parameters.
type WallDetectionConfig struct {
	DistanceThreshold          float64 `json:"distance_threshold"`
	MinWallLengthFeet          float64 `json:"min_wall_length_feet"`
	MaxWalls                   int     `json:"max_walls"`
	RANSACIterations           int     `json:"ransac_iterations"`
	MinPointsPerWall           int     `json:"min_points_per_wall"`
	DBSCANEps                  float64 `json:"dbscan_eps"`
	DBSCANMinPoints            int     `json:"dbscan_min_points"`
	SnapThresholdFeet          float64 `json:"snap_threshold_feet"`
	MergeAngleToleranceDeg     float64 `json:"merge_angle_tolerance_deg"`
	MergeDistanceToleranceFeet float64 `json:"merge_distance_tolerance_feet"`
	CornerSplitAngleDeg        float64 `json:"corner_split_angle_deg"`
	RANSACWorkers              int     `json:"ransac_workers"`
	Seed                       int64   `json:"seed"`
}

// DefaultWallDetectionConfig returns the documented default thresholds.
func DefaultWallDetectionConfig() WallDetectionConfig {
	return WallDetectionConfig{
		DistanceThreshold:          DefaultDistanceThreshold,
		MinWallLengthFeet:          DefaultMinWallLengthFeet,
		MaxWalls:                   DefaultMaxWalls,
		RANSACIterations:           DefaultRANSACIterations,
		MinPointsPerWall:           DefaultMinPointsPerWall,
		SnapThresholdFeet:          DefaultSnapThresholdFeet,
		MergeAngleToleranceDeg:     DefaultMergeAngleToleranceDeg,
		MergeDistanceToleranceFeet: DefaultMergeDistanceToleranceFeet,
		CornerSplitAngleDeg:        DefaultCornerSplitAngleDeg,
		RANSACWorkers:              DefaultRANSACWorkers,
		Seed:                       DefaultSeed,
	}
}

// Validate checks that every threshold is usable.
func (c WallDetectionConfig) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"distance_threshold", c.DistanceThreshold},
		{"snap_threshold_feet", c.SnapThresholdFeet},
		{"merge_angle_tolerance_deg", c.MergeAngleToleranceDeg},
		{"merge_distance_tolerance_feet", c.MergeDistanceToleranceFeet},
		{"corner_split_angle_deg", c.CornerSplitAngleDeg},
	}
	for _, f := range positive {
		if !isPositiveFinite(f.v) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if math.IsNaN(c.MinWallLengthFeet) || c.MinWallLengthFeet < 0 {
		return fmt.Errorf("%w: min_wall_length_feet must be non-negative, got %v", ErrInvalidConfig, c.MinWallLengthFeet)
	}
	if c.MaxWalls < 1 {
		return fmt.Errorf("%w: max_walls must be at least 1, got %d", ErrInvalidConfig, c.MaxWalls)
	}
	if c.RANSACIterations < 1 {
		return fmt.Errorf("%w: ransac_iterations must be at least 1, got %d", ErrInvalidConfig, c.RANSACIterations)
	}
	if c.MinPointsPerWall < 2 {
		return fmt.Errorf("%w: min_points_per_wall must be at least 2, got %d", ErrInvalidConfig, c.MinPointsPerWall)
	}
	// Zero selects the adaptive eps.
	if c.DBSCANEps != 0 && !isPositiveFinite(c.DBSCANEps) {
		return fmt.Errorf("%w: dbscan_eps must be zero or positive and finite, got %v", ErrInvalidConfig, c.DBSCANEps)
	}
	if c.DBSCANMinPoints < 0 {
		return fmt.Errorf("%w: dbscan_min_points must be non-negative, got %d", ErrInvalidConfig, c.DBSCANMinPoints)
	}
	if c.RANSACWorkers < 1 {
		return fmt.Errorf("%w: ransac_workers must be at least 1, got %d", ErrInvalidConfig, c.RANSACWorkers)
	}
	return nil
}

// ValidateScaleFactor rejects non-positive or non-finite view-units-per-foot
// conversions.
func ValidateScaleFactor(scaleFactor float64) error {
	if !isPositiveFinite(scaleFactor) {
		return fmt.Errorf("%w: scale factor must be positive, got %v", ErrInvalidConfig, scaleFactor)
	}
	return nil
}

// ValidateSliceBox rejects slabs that can never contain a point.
func ValidateSliceBox(c SliceBoxConfig) error {
	for _, v := range []float64{c.Center.X, c.Center.Y, c.Center.Z, c.Rotation.X, c.Rotation.Y, c.Rotation.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: slice box center and rotation must be finite", ErrInvalidConfig)
		}
	}
	if !isPositiveFinite(c.HalfExtents.X) || !isPositiveFinite(c.HalfExtents.Z) {
		return fmt.Errorf("%w: slice box half extents must be positive, got x=%v z=%v",
			ErrInvalidConfig, c.HalfExtents.X, c.HalfExtents.Z)
	}
	if !isPositiveFinite(c.ThicknessInches) {
		return fmt.Errorf("%w: slice thickness must be positive, got %v inches", ErrInvalidConfig, c.ThicknessInches)
	}
	return nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
