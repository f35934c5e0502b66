// Package monitor serves floor-plan generation over HTTP: a JSON API that
// runs the pipeline and stores each run, SVG/GeoJSON/plot downloads of stored
// runs, an echarts debug page and prometheus metrics.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/banshee-data/floorplan.report/internal/config"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l6render"
	sqlite "github.com/banshee-data/floorplan.report/internal/floorplan/storage/sqlite"
	"github.com/banshee-data/floorplan.report/internal/monitoring"
	"github.com/banshee-data/floorplan.report/internal/timeutil"
)

// RunStore is the persistence the server needs. *sqlite.RunStore satisfies
// it.
type RunStore interface {
	Insert(run *sqlite.Run) error
	Get(runID string) (*sqlite.Run, error)
	List(limit int) ([]sqlite.RunSummary, error)
	Delete(runID string) error
}

// Config wires a Server.
type Config struct {
	Address string
	Store   RunStore
	// Detection supplies defaults for requests that omit config fields.
	Detection *config.DetectionConfig
	Render    l6render.Options
	Logger    *zap.Logger
	Clock     timeutil.Clock
	Registry  *prometheus.Registry
}

// Server is the HTTP monitor.
type Server struct {
	address   string
	store     RunStore
	detection *config.DetectionConfig
	render    l6render.Options
	logger    *zap.Logger
	sink      *monitoring.ZapSink
	clock     timeutil.Clock
	registry  *prometheus.Registry
	metrics   *Metrics
	server    *http.Server
}

// NewServer builds a Server. Zero-valued optional fields get defaults: the
// built-in detection config and render options, a no-op logger, the real
// clock and a fresh registry with the Go and process collectors.
func NewServer(cfg Config) *Server {
	s := &Server{
		address:   cfg.Address,
		store:     cfg.Store,
		detection: cfg.Detection,
		render:    cfg.Render,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		registry:  cfg.Registry,
	}
	if s.detection == nil {
		s.detection = config.EmptyDetectionConfig()
	}
	if s.render == (l6render.Options{}) {
		s.render = l6render.DefaultOptions()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.sink = monitoring.NewZapSink(s.logger)
	s.metrics = NewMetrics(s.registry)
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("POST /api/floorplan", s.handleGenerate)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleDeleteRun)
	mux.HandleFunc("GET /api/runs/{id}/svg", s.handleRunSVG)
	mux.HandleFunc("GET /api/runs/{id}/geojson", s.handleRunGeoJSON)
	mux.HandleFunc("GET /api/runs/{id}/plot.png", s.handleRunPlot)
	mux.HandleFunc("GET /charts/walls", s.handleWallsChart)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.address))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", zap.Error(err))
		if err := s.server.Close(); err != nil {
			s.logger.Warn("HTTP server force close error", zap.Error(err))
		}
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
