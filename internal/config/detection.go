package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// DefaultConfigPath is the path to the canonical detection defaults file.
const DefaultConfigPath = "config/detection.defaults.json"

// DefaultTimeout bounds one pipeline run when the config sets no timeout.
const DefaultTimeout = 30 * time.Second

const maxFileSize = 1 * 1024 * 1024 // 1MB

// DetectionConfig is the on-disk form of floorplan.WallDetectionConfig plus
// the run-level settings the CLI and the HTTP monitor need. Every field is
// optional; the Get* methods fall back to the library defaults, so partial
// files are safe.
type DetectionConfig struct {
	// Detection thresholds
	DistanceThreshold          *float64 `json:"distance_threshold,omitempty"`
	MinWallLengthFeet          *float64 `json:"min_wall_length_feet,omitempty"`
	MaxWalls                   *int     `json:"max_walls,omitempty"`
	RANSACIterations           *int     `json:"ransac_iterations,omitempty"`
	MinPointsPerWall           *int     `json:"min_points_per_wall,omitempty"`
	DBSCANEps                  *float64 `json:"dbscan_eps,omitempty"`
	DBSCANMinPoints            *int     `json:"dbscan_min_points,omitempty"`
	SnapThresholdFeet          *float64 `json:"snap_threshold_feet,omitempty"`
	MergeAngleToleranceDeg     *float64 `json:"merge_angle_tolerance_deg,omitempty"`
	MergeDistanceToleranceFeet *float64 `json:"merge_distance_tolerance_feet,omitempty"`
	CornerSplitAngleDeg        *float64 `json:"corner_split_angle_deg,omitempty"`
	RANSACWorkers              *int     `json:"ransac_workers,omitempty"`
	Seed                       *int64   `json:"seed,omitempty"`

	// Run settings
	ScaleFactor *float64 `json:"scale_factor,omitempty"`
	Timeout     *string  `json:"timeout,omitempty"` // duration string like "30s"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }
func ptrString(v string) *string    { return &v }

// EmptyDetectionConfig returns a DetectionConfig with every field unset.
func EmptyDetectionConfig() *DetectionConfig {
	return &DetectionConfig{}
}

// FromWallDetectionConfig returns a fully populated DetectionConfig.
func FromWallDetectionConfig(c floorplan.WallDetectionConfig, scaleFactor float64) *DetectionConfig {
	return &DetectionConfig{
		DistanceThreshold:          ptrFloat64(c.DistanceThreshold),
		MinWallLengthFeet:          ptrFloat64(c.MinWallLengthFeet),
		MaxWalls:                   ptrInt(c.MaxWalls),
		RANSACIterations:           ptrInt(c.RANSACIterations),
		MinPointsPerWall:           ptrInt(c.MinPointsPerWall),
		DBSCANEps:                  ptrFloat64(c.DBSCANEps),
		DBSCANMinPoints:            ptrInt(c.DBSCANMinPoints),
		SnapThresholdFeet:          ptrFloat64(c.SnapThresholdFeet),
		MergeAngleToleranceDeg:     ptrFloat64(c.MergeAngleToleranceDeg),
		MergeDistanceToleranceFeet: ptrFloat64(c.MergeDistanceToleranceFeet),
		CornerSplitAngleDeg:        ptrFloat64(c.CornerSplitAngleDeg),
		RANSACWorkers:              ptrInt(c.RANSACWorkers),
		Seed:                       ptrInt64(c.Seed),
		ScaleFactor:                ptrFloat64(scaleFactor),
		Timeout:                    ptrString(DefaultTimeout.String()),
	}
}

// readJSONFile checks the extension and size of path, then decodes it into v.
func readJSONFile(path string, v interface{}) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// LoadDetectionConfig loads and validates a DetectionConfig from a JSON file.
func LoadDetectionConfig(path string) (*DetectionConfig, error) {
	cfg := EmptyDetectionConfig()
	if err := readJSONFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics if the file cannot be loaded and is
// intended for test setup.
func MustLoadDefaultConfig() *DetectionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadDetectionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// LoadSliceBox loads and validates a slice box from a JSON file.
func LoadSliceBox(path string) (floorplan.SliceBoxConfig, error) {
	var box floorplan.SliceBoxConfig
	if err := readJSONFile(path, &box); err != nil {
		return floorplan.SliceBoxConfig{}, err
	}
	if err := floorplan.ValidateSliceBox(box); err != nil {
		return floorplan.SliceBoxConfig{}, err
	}
	return box, nil
}

// Validate checks the merged configuration and the run settings.
func (c *DetectionConfig) Validate() error {
	if err := c.ToWallDetectionConfig().Validate(); err != nil {
		return err
	}
	if c.ScaleFactor != nil {
		if err := floorplan.ValidateScaleFactor(*c.ScaleFactor); err != nil {
			return err
		}
	}
	if c.Timeout != nil && *c.Timeout != "" {
		d, err := time.ParseDuration(*c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
	}
	return nil
}

// ToWallDetectionConfig merges the set fields over the library defaults.
func (c *DetectionConfig) ToWallDetectionConfig() floorplan.WallDetectionConfig {
	return floorplan.WallDetectionConfig{
		DistanceThreshold:          c.GetDistanceThreshold(),
		MinWallLengthFeet:          c.GetMinWallLengthFeet(),
		MaxWalls:                   c.GetMaxWalls(),
		RANSACIterations:           c.GetRANSACIterations(),
		MinPointsPerWall:           c.GetMinPointsPerWall(),
		DBSCANEps:                  c.GetDBSCANEps(),
		DBSCANMinPoints:            c.GetDBSCANMinPoints(),
		SnapThresholdFeet:          c.GetSnapThresholdFeet(),
		MergeAngleToleranceDeg:     c.GetMergeAngleToleranceDeg(),
		MergeDistanceToleranceFeet: c.GetMergeDistanceToleranceFeet(),
		CornerSplitAngleDeg:        c.GetCornerSplitAngleDeg(),
		RANSACWorkers:              c.GetRANSACWorkers(),
		Seed:                       c.GetSeed(),
	}
}

// GetTimeout parses Timeout, falling back to DefaultTimeout.
func (c *DetectionConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// GetScaleFactor returns scale_factor or 1 (view units are feet).
func (c *DetectionConfig) GetScaleFactor() float64 {
	if c.ScaleFactor == nil {
		return 1
	}
	return *c.ScaleFactor
}

func (c *DetectionConfig) GetDistanceThreshold() float64 {
	if c.DistanceThreshold == nil {
		return floorplan.DefaultDistanceThreshold
	}
	return *c.DistanceThreshold
}

func (c *DetectionConfig) GetMinWallLengthFeet() float64 {
	if c.MinWallLengthFeet == nil {
		return floorplan.DefaultMinWallLengthFeet
	}
	return *c.MinWallLengthFeet
}

func (c *DetectionConfig) GetMaxWalls() int {
	if c.MaxWalls == nil {
		return floorplan.DefaultMaxWalls
	}
	return *c.MaxWalls
}

func (c *DetectionConfig) GetRANSACIterations() int {
	if c.RANSACIterations == nil {
		return floorplan.DefaultRANSACIterations
	}
	return *c.RANSACIterations
}

func (c *DetectionConfig) GetMinPointsPerWall() int {
	if c.MinPointsPerWall == nil {
		return floorplan.DefaultMinPointsPerWall
	}
	return *c.MinPointsPerWall
}

// GetDBSCANEps returns dbscan_eps or 0, which selects adaptive parameters.
func (c *DetectionConfig) GetDBSCANEps() float64 {
	if c.DBSCANEps == nil {
		return 0
	}
	return *c.DBSCANEps
}

// GetDBSCANMinPoints returns dbscan_min_points or 0 (adaptive).
func (c *DetectionConfig) GetDBSCANMinPoints() int {
	if c.DBSCANMinPoints == nil {
		return 0
	}
	return *c.DBSCANMinPoints
}

func (c *DetectionConfig) GetSnapThresholdFeet() float64 {
	if c.SnapThresholdFeet == nil {
		return floorplan.DefaultSnapThresholdFeet
	}
	return *c.SnapThresholdFeet
}

func (c *DetectionConfig) GetMergeAngleToleranceDeg() float64 {
	if c.MergeAngleToleranceDeg == nil {
		return floorplan.DefaultMergeAngleToleranceDeg
	}
	return *c.MergeAngleToleranceDeg
}

func (c *DetectionConfig) GetMergeDistanceToleranceFeet() float64 {
	if c.MergeDistanceToleranceFeet == nil {
		return floorplan.DefaultMergeDistanceToleranceFeet
	}
	return *c.MergeDistanceToleranceFeet
}

func (c *DetectionConfig) GetCornerSplitAngleDeg() float64 {
	if c.CornerSplitAngleDeg == nil {
		return floorplan.DefaultCornerSplitAngleDeg
	}
	return *c.CornerSplitAngleDeg
}

func (c *DetectionConfig) GetRANSACWorkers() int {
	if c.RANSACWorkers == nil {
		return floorplan.DefaultRANSACWorkers
	}
	return *c.RANSACWorkers
}

func (c *DetectionConfig) GetSeed() int64 {
	if c.Seed == nil {
		return floorplan.DefaultSeed
	}
	return *c.Seed
}
