// Package pipeline runs the floor-plan stages in order: slice and project,
// detect walls, merge collinear walls and snap corners.
//
// This package is the composition root: it imports from layer packages
// (l1scene, l2slice, l4fit, l5topology) but none of those packages import
// pipeline/. Rendering is left to the caller so a plan can be drawn with
// different options without recomputing it.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l1scene"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l2slice"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l4fit"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l5topology"
	"github.com/banshee-data/floorplan.report/internal/timeutil"
)

// Stage names reported to a StageObserver.
const (
	StageSlice  = "slice"
	StageDetect = "detect"
	StageMerge  = "merge"
	StageSnap   = "snap"
)

// Stages lists every stage in execution order.
var Stages = []string{StageSlice, StageDetect, StageMerge, StageSnap}

// StageObserver is told how long each stage took.
type StageObserver func(stage string, d time.Duration)

// Input is everything one run reconstructs a plan from.
type Input struct {
	Points      []floorplan.Point3D
	Slice       floorplan.SliceBoxConfig
	ScaleFactor float64
	Config      floorplan.WallDetectionConfig
}

// Validate checks the input before any stage runs.
func (in Input) Validate() error {
	if err := l2slice.Validate(in.Slice, in.ScaleFactor); err != nil {
		return err
	}
	if err := in.Config.Validate(); err != nil {
		return err
	}
	return nil
}

// Options carries the injectable collaborators of a run. Zero values fall
// back to a silent sink, the real clock and a source seeded from
// Config.Seed.
type Options struct {
	Sink     floorplan.Sink
	Clock    timeutil.Clock
	Rand     *rand.Rand
	Observer StageObserver
}

// Result is a finished run: the plan plus per-stage bookkeeping.
type Result struct {
	Plan         *floorplan.FloorPlan
	Detection    l4fit.Detection
	MergedWalls  int // wall count after merging, before snapping
	Snap         l5topology.SnapStats
	StageTimings map[string]time.Duration
}

// Run reconstructs a floor plan from in. Invalid configuration is reported
// before anything runs, wrapped around floorplan.ErrInvalidConfig.
// Degenerate geometry is not an error: a slab with no points yields a plan
// with no walls. Cancellation returns ctx.Err().
func Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	sink := floorplan.OrNop(opts.Sink)
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(in.Config.Seed))
	}

	res := &Result{StageTimings: make(map[string]time.Duration, len(Stages))}
	timed := func(stage string, start time.Time) {
		d := clock.Since(start)
		res.StageTimings[stage] = d
		if opts.Observer != nil {
			opts.Observer(stage, d)
		}
		sink.Tracef("stage %s took %v", stage, d)
	}
	cfg, scale := in.Config, in.ScaleFactor

	start := clock.Now()
	points2D := l2slice.SliceAndProject(in.Points, in.Slice, scale)
	timed(StageSlice, start)
	sink.Diagf("slice kept %d of %d points (thickness %.2f in)", len(points2D), len(in.Points), in.Slice.ThicknessInches)
	if len(points2D) == 0 && len(in.Points) > 0 {
		sink.Opsf("slice box selected no points; check its center and thickness")
	}

	start = clock.Now()
	det, err := l4fit.DetectWalls(ctx, points2D, cfg, scale, rng, sink)
	if err != nil {
		return nil, err
	}
	timed(StageDetect, start)
	res.Detection = det

	start = clock.Now()
	walls := l5topology.MergeCollinearWalls(det.Walls, cfg.MergeAngleToleranceDeg, cfg.MergeDistanceToleranceFeet, scale)
	timed(StageMerge, start)
	res.MergedWalls = len(walls)
	sink.Diagf("merge: %d walls -> %d", len(det.Walls), len(walls))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = clock.Now()
	walls, res.Snap = l5topology.SnapCorners(walls, cfg.SnapThresholdFeet, scale)
	timed(StageSnap, start)
	sink.Diagf("snap: %d groups (%d intersection, %d mean, %d skipped)",
		res.Snap.Groups, res.Snap.Intersection, res.Snap.Mean, res.Snap.Skipped)

	if walls == nil {
		walls = []floorplan.WallSegment{}
	}
	res.Plan = &floorplan.FloorPlan{
		Walls:    walls,
		Points2D: points2D,
		Bounds:   floorplan.BoundsOf(points2D),
		Metadata: floorplan.Metadata{
			PointCount:           len(points2D),
			WallCount:            len(walls),
			GeneratedAt:          clock.Now(),
			SliceThicknessInches: in.Slice.ThicknessInches,
			ScaleFactor:          scale,
			DetectionMethod:      det.Method,
		},
	}
	sink.Opsf("floor plan: %d walls from %d points via %s", len(walls), len(points2D), det.Method)
	return res, nil
}

// GenerateFromScene extracts every vertex under root in world space and runs
// the pipeline on them. in.Points is ignored.
func GenerateFromScene(ctx context.Context, root *l1scene.Node, in Input, opts Options) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	in.Points = l1scene.ExtractPoints(root)
	floorplan.OrNop(opts.Sink).Diagf("extracted %d points from scene", len(in.Points))
	return Run(ctx, in, opts)
}
