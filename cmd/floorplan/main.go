// Command floorplan reconstructs a 2D floor plan from a 3D scan.
//
// Generate locally and write SVG and JSON next to each other:
//
//	floorplan -points scan.xyz -slice slice.json -formats svg,json -out plans/
//
// Or serve the HTTP monitor backed by a run database:
//
//	floorplan -serve :8088 -db floorplan.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/banshee-data/floorplan.report/internal/config"
	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/export"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l1scene"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l6render"
	"github.com/banshee-data/floorplan.report/internal/floorplan/monitor"
	"github.com/banshee-data/floorplan.report/internal/floorplan/pipeline"
	sqlite "github.com/banshee-data/floorplan.report/internal/floorplan/storage/sqlite"
	"github.com/banshee-data/floorplan.report/internal/monitoring"
	"github.com/banshee-data/floorplan.report/internal/version"
)

const defaultDBPath = "floorplan.db"

type options struct {
	scene      string
	points     string
	slice      string
	scale      float64
	configPath string
	outDir     string
	name       string
	formats    []export.Format
	showPoints bool
	dbPath     string
	seed       int64
	logLevel   string
	logFormat  string
	serve      string
	submit     string
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("floorplan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.scene, "scene", "", "Scene manifest (.json) listing point and mesh assets")
	fs.StringVar(&o.points, "points", "", "Single point file (.xyz) or mesh (.stl)")
	fs.StringVar(&o.slice, "slice", "", "Slice box config (.json)")
	fs.Float64Var(&o.scale, "scale", 0, "Scene units per foot (0 uses the config value)")
	fs.StringVar(&o.configPath, "config", "", "Wall detection config (.json); built-in defaults if empty")
	fs.StringVar(&o.outDir, "out", ".", "Output directory")
	fs.StringVar(&o.name, "name", "floorplan", "Base name for output files")
	formats := fs.String("formats", "svg", "Comma-separated export formats: json,geojson,svg,png,pdf")
	fs.BoolVar(&o.showPoints, "show-points", false, "Draw slice points in SVG output")
	fs.StringVar(&o.dbPath, "db", "", "Store the run in this SQLite database")
	fs.Int64Var(&o.seed, "seed", -1, "RANSAC seed override (-1 keeps the config value)")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "console", "Log encoding: console or json")
	fs.StringVar(&o.serve, "serve", "", "Serve the HTTP monitor on this address instead of generating")
	fs.StringVar(&o.submit, "submit", "", "Submit the scan to a monitor at this URL instead of generating locally")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version || o.serve != "" {
		return o, nil
	}

	for _, s := range strings.Split(*formats, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		f, err := export.ParseFormat(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		o.formats = append(o.formats, f)
	}
	if len(o.formats) == 0 {
		return nil, errors.New("at least one output format is required")
	}
	if (o.scene == "") == (o.points == "") {
		return nil, errors.New("exactly one of -scene or -points is required")
	}
	if o.slice == "" {
		return nil, errors.New("-slice is required")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("floorplan: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("floorplan: %v", err)
	}
}

func run(ctx context.Context, o *options, stdout io.Writer) error {
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	logger, err := monitoring.NewLogger(monitoring.LoggerConfig{Level: o.logLevel, Format: o.logFormat})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	monitoring.SetLogger(monitoring.ZapLogf(logger))

	detection := config.EmptyDetectionConfig()
	if o.configPath != "" {
		if detection, err = config.LoadDetectionConfig(o.configPath); err != nil {
			return err
		}
	}
	if o.seed >= 0 {
		seed := o.seed
		detection.Seed = &seed
	}
	if err := detection.Validate(); err != nil {
		return fmt.Errorf("invalid detection config: %w", err)
	}

	if o.serve != "" {
		return serve(ctx, o, detection, logger)
	}

	slice, err := config.LoadSliceBox(o.slice)
	if err != nil {
		return err
	}
	root, err := loadScene(o)
	if err != nil {
		return err
	}
	scale := o.scale
	if scale == 0 {
		scale = detection.GetScaleFactor()
	}
	renderOpts := l6render.DefaultOptions()
	renderOpts.ShowPoints = o.showPoints

	var plan *floorplan.FloorPlan
	if o.submit != "" {
		plan, err = submit(ctx, o, root, slice, scale, detection)
	} else {
		plan, err = generate(ctx, o, root, slice, scale, detection, logger)
	}
	if err != nil {
		return err
	}

	paths, err := export.WriteFiles(o.outDir, o.name, plan, renderOpts, o.formats...)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func loadScene(o *options) (*l1scene.Node, error) {
	if o.scene != "" {
		return l1scene.LoadScene(o.scene)
	}
	return l1scene.LoadPointFile(o.points)
}

func generate(ctx context.Context, o *options, root *l1scene.Node, slice floorplan.SliceBoxConfig,
	scale float64, detection *config.DetectionConfig, logger *zap.Logger) (*floorplan.FloorPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, detection.GetTimeout())
	defer cancel()

	in := pipeline.Input{Slice: slice, ScaleFactor: scale, Config: detection.ToWallDetectionConfig()}
	res, err := pipeline.GenerateFromScene(ctx, root, in, pipeline.Options{Sink: monitoring.NewZapSink(logger)})
	if err != nil {
		return nil, err
	}

	if o.dbPath != "" {
		db, err := sqlite.Open(o.dbPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		run := &sqlite.Run{
			Source: sourceName(o),
			Slice:  slice,
			Config: in.Config,
			Plan:   res.Plan,
		}
		if err := sqlite.NewRunStore(db).Insert(run); err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
		logger.Info("stored run", zap.String("run_id", run.RunID), zap.String("db", o.dbPath))
	}
	return res.Plan, nil
}

func submit(ctx context.Context, o *options, root *l1scene.Node, slice floorplan.SliceBoxConfig,
	scale float64, detection *config.DetectionConfig) (*floorplan.FloorPlan, error) {
	world := l1scene.ExtractPoints(root)
	points := make([][3]float64, len(world))
	for i, p := range world {
		points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	resp, err := monitor.NewClient(o.submit, nil).Generate(ctx, monitor.GenerateRequest{
		Points:      points,
		Slice:       slice,
		ScaleFactor: scale,
		Config:      detection,
		Source:      sourceName(o),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("submitted run %s to %s", resp.RunID, o.submit)
	return resp.Plan, nil
}

func serve(ctx context.Context, o *options, detection *config.DetectionConfig, logger *zap.Logger) error {
	dbPath := o.dbPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	renderOpts := l6render.DefaultOptions()
	renderOpts.ShowPoints = o.showPoints
	srv := monitor.NewServer(monitor.Config{
		Address:   o.serve,
		Store:     sqlite.NewRunStore(db),
		Detection: detection,
		Render:    renderOpts,
		Logger:    logger,
	})
	return srv.Start(ctx)
}

func sourceName(o *options) string {
	if o.scene != "" {
		return o.scene
	}
	return o.points
}
