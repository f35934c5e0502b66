package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banshee-data/floorplan.report/internal/config"
	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/export"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l6render"
	"github.com/banshee-data/floorplan.report/internal/floorplan/pipeline"
	sqlite "github.com/banshee-data/floorplan.report/internal/floorplan/storage/sqlite"
	"github.com/banshee-data/floorplan.report/internal/httputil"
	"github.com/banshee-data/floorplan.report/internal/units"
	"github.com/banshee-data/floorplan.report/internal/version"
)

// GenerateRequest is the body of POST /api/floorplan. Points are [x, y, z]
// triples in world space. A zero ScaleFactor takes the server's configured
// scale. Config and Render override the server defaults field by field.
type GenerateRequest struct {
	Points      [][3]float64             `json:"points"`
	Slice       floorplan.SliceBoxConfig `json:"slice"`
	ScaleFactor float64                  `json:"scale_factor,omitempty"`
	Config      *config.DetectionConfig  `json:"config,omitempty"`
	Render      json.RawMessage          `json:"render,omitempty"`
	Source      string                   `json:"source,omitempty"`
}

// GenerateResponse is returned by POST /api/floorplan.
type GenerateResponse struct {
	RunID          string               `json:"run_id"`
	Plan           *floorplan.FloorPlan `json:"plan"`
	SVG            string               `json:"svg"`
	StageTimingsMs map[string]float64   `json:"stage_timings_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current())
}

// mergeDetection overlays the request's set fields on the server defaults.
func (s *Server) mergeDetection(req *config.DetectionConfig) *config.DetectionConfig {
	merged := *s.detection
	if req == nil {
		return &merged
	}
	overlay := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	overlayInt := func(dst **int, src *int) {
		if src != nil {
			*dst = src
		}
	}
	overlay(&merged.DistanceThreshold, req.DistanceThreshold)
	overlay(&merged.MinWallLengthFeet, req.MinWallLengthFeet)
	overlayInt(&merged.MaxWalls, req.MaxWalls)
	overlayInt(&merged.RANSACIterations, req.RANSACIterations)
	overlayInt(&merged.MinPointsPerWall, req.MinPointsPerWall)
	overlay(&merged.DBSCANEps, req.DBSCANEps)
	overlayInt(&merged.DBSCANMinPoints, req.DBSCANMinPoints)
	overlay(&merged.SnapThresholdFeet, req.SnapThresholdFeet)
	overlay(&merged.MergeAngleToleranceDeg, req.MergeAngleToleranceDeg)
	overlay(&merged.MergeDistanceToleranceFeet, req.MergeDistanceToleranceFeet)
	overlay(&merged.CornerSplitAngleDeg, req.CornerSplitAngleDeg)
	overlayInt(&merged.RANSACWorkers, req.RANSACWorkers)
	overlay(&merged.ScaleFactor, req.ScaleFactor)
	if req.Seed != nil {
		merged.Seed = req.Seed
	}
	if req.Timeout != nil {
		merged.Timeout = req.Timeout
	}
	return &merged
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	detection := s.mergeDetection(req.Config)
	if err := detection.Validate(); err != nil {
		s.metrics.RecordRun(nil, StatusInvalid)
		httputil.BadRequest(w, err.Error())
		return
	}
	renderOpts := s.render
	if len(req.Render) > 0 {
		if err := json.Unmarshal(req.Render, &renderOpts); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid render options: %v", err))
			return
		}
	}
	if err := renderOpts.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	scale := req.ScaleFactor
	if scale == 0 {
		scale = detection.GetScaleFactor()
	}
	points := make([]floorplan.Point3D, len(req.Points))
	for i, p := range req.Points {
		points[i] = floorplan.Point3D{X: p[0], Y: p[1], Z: p[2]}
	}

	runID := uuid.New().String()
	sink := s.sink.With(zap.String("run_id", runID))
	ctx, cancel := context.WithTimeout(r.Context(), detection.GetTimeout())
	defer cancel()

	started := s.clock.Now()
	res, err := pipeline.Run(ctx, pipeline.Input{
		Points:      points,
		Slice:       req.Slice,
		ScaleFactor: scale,
		Config:      detection.ToWallDetectionConfig(),
	}, pipeline.Options{
		Sink:     sink,
		Clock:    s.clock,
		Observer: s.metrics.ObserveStage,
	})
	switch {
	case errors.Is(err, floorplan.ErrInvalidConfig):
		s.metrics.RecordRun(nil, StatusInvalid)
		httputil.BadRequest(w, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordRun(nil, StatusError)
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, "floor plan generation timed out")
		return
	case err != nil:
		s.metrics.RecordRun(nil, StatusError)
		s.logger.Error("pipeline failed", zap.String("run_id", runID), zap.Error(err))
		httputil.InternalServerError(w, err.Error())
		return
	}
	elapsed := s.clock.Since(started)

	svg, err := l6render.RenderSVG(res.Plan, renderOpts)
	if err != nil {
		s.metrics.RecordRun(res, StatusError)
		httputil.InternalServerError(w, fmt.Sprintf("render failed: %v", err))
		return
	}

	run := &sqlite.Run{
		RunID:      runID,
		Source:     req.Source,
		CreatedAt:  started.UTC(),
		DurationMs: float64(elapsed) / float64(time.Millisecond),
		Slice:      req.Slice,
		Config:     detection.ToWallDetectionConfig(),
		Plan:       res.Plan,
	}
	if err := s.store.Insert(run); err != nil {
		s.metrics.RecordRun(res, StatusError)
		s.logger.Error("failed to store run", zap.String("run_id", runID), zap.Error(err))
		httputil.InternalServerError(w, "failed to store run")
		return
	}
	s.metrics.RecordRun(res, StatusOK)

	timings := make(map[string]float64, len(res.StageTimings))
	for stage, d := range res.StageTimings {
		timings[stage] = float64(d) / float64(time.Millisecond)
	}
	httputil.WriteJSON(w, http.StatusCreated, GenerateResponse{
		RunID:          runID,
		Plan:           res.Plan,
		SVG:            svg,
		StageTimingsMs: timings,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 500 {
			httputil.BadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = v
	}
	runs, err := s.store.List(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// loadRun fetches the {id} run, writing 404 or 500 itself on failure.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*sqlite.Run, bool) {
	id := r.PathValue("id")
	run, err := s.store.Get(id)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.loadRun(w, r); ok {
		httputil.WriteJSONOK(w, run)
	}
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.PathValue("id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderOptionsFromQuery applies show_points, show_thickness, show_walls and
// show_dimensions query flags over the server defaults.
func (s *Server) renderOptionsFromQuery(r *http.Request) (l6render.Options, error) {
	opts := s.render
	flags := []struct {
		name string
		dst  *bool
	}{
		{"show_points", &opts.ShowPoints},
		{"show_thickness", &opts.ShowThickness},
		{"show_walls", &opts.ShowWalls},
		{"show_dimensions", &opts.ShowDimensions},
	}
	q := r.URL.Query()
	for _, f := range flags {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %q", f.name, v)
		}
		*f.dst = b
	}
	return opts, nil
}

func (s *Server) handleRunSVG(w http.ResponseWriter, r *http.Request) {
	opts, err := s.renderOptionsFromQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	svg, err := l6render.RenderSVG(run.Plan, opts)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, "image/svg+xml", []byte(svg))
}

// handleRunGeoJSON serves a stored plan as GeoJSON.
// Query params:
//   - units (optional; ft, in or m, default ft)
func (s *Server) handleRunGeoJSON(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("units")
	if unit == "" {
		unit = units.Feet
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("invalid 'units' parameter %q, must be one of: %s", unit, units.GetValidUnitsString()))
		return
	}
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteGeoJSON(&buf, run.Plan, unit); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, "application/geo+json", buf.Bytes())
}

func (s *Server) handleRunPlot(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WritePlot(&buf, run.Plan, export.FormatPNG, export.DefaultPlotSize); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, "image/png", buf.Bytes())
}
