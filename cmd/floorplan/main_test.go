package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/export"
	"github.com/banshee-data/floorplan.report/internal/floorplan/monitor"
	sqlite "github.com/banshee-data/floorplan.report/internal/floorplan/storage/sqlite"
	"github.com/banshee-data/floorplan.report/internal/testutil"
)

// writeFixtures writes the default room cloud and its mid-height slice box.
func writeFixtures(t *testing.T) (points, slice string) {
	t.Helper()
	dir := t.TempDir()
	points = testutil.WriteXYZ(t, dir, "room.xyz", testutil.DefaultRoom.Cloud(199))

	data, err := json.Marshal(testutil.DefaultRoom.MidSlice())
	require.NoError(t, err)
	slice = filepath.Join(dir, "slice.json")
	require.NoError(t, os.WriteFile(slice, data, 0o644))
	return points, slice
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "points", args: []string{"-points", "a.xyz", "-slice", "s.json"}},
		{name: "scene", args: []string{"-scene", "m.json", "-slice", "s.json", "-formats", "svg, json"}},
		{name: "version only", args: []string{"-version"}},
		{name: "serve only", args: []string{"-serve", ":0"}},
		{name: "no source", args: []string{"-slice", "s.json"}, wantErr: "exactly one of"},
		{name: "both sources", args: []string{"-scene", "m.json", "-points", "a.xyz", "-slice", "s.json"}, wantErr: "exactly one of"},
		{name: "no slice", args: []string{"-points", "a.xyz"}, wantErr: "-slice is required"},
		{name: "bad format", args: []string{"-points", "a.xyz", "-slice", "s.json", "-formats", "svg,tiff"}, wantErr: "unsupported export format"},
		{name: "no formats", args: []string{"-points", "a.xyz", "-slice", "s.json", "-formats", ","}, wantErr: "at least one"},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags([]string{"-points", "a.xyz", "-slice", "s.json", "-formats", "SVG,.geojson"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []export.Format{export.FormatSVG, export.FormatGeoJSON}, o.formats)
	assert.Equal(t, ".", o.outDir)
	assert.Equal(t, "floorplan", o.name)
	assert.Equal(t, int64(-1), o.seed)
	assert.Zero(t, o.scale)
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &options{version: true}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "floorplan dev"))
}

func TestRun_GeneratesFiles(t *testing.T) {
	points, slice := writeFixtures(t)
	outDir := t.TempDir()
	o, err := parseFlags([]string{
		"-points", points, "-slice", slice,
		"-formats", "svg,json", "-out", outDir, "-name", "room",
		"-log-level", "error",
	}, io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Equal(t,
		filepath.Join(outDir, "room.svg")+"\n"+filepath.Join(outDir, "room.json")+"\n",
		out.String())

	svg, err := os.ReadFile(filepath.Join(outDir, "room.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	data, err := os.ReadFile(filepath.Join(outDir, "room.json"))
	require.NoError(t, err)
	var plan floorplan.FloorPlan
	require.NoError(t, json.Unmarshal(data, &plan))
	assert.Len(t, plan.Walls, 4)
	assert.Equal(t, floorplan.MethodRANSAC, plan.Metadata.DetectionMethod)
}

func TestRun_StoresRun(t *testing.T) {
	points, slice := writeFixtures(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	o, err := parseFlags([]string{
		"-points", points, "-slice", slice,
		"-formats", "geojson", "-out", t.TempDir(),
		"-db", dbPath, "-seed", "7", "-log-level", "error",
	}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), o, io.Discard))

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	runs, err := sqlite.NewRunStore(db).List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, points, runs[0].Source)
	assert.Equal(t, 4, runs[0].WallCount)

	stored, err := sqlite.NewRunStore(db).Get(runs[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Config.Seed)
}

func TestRun_Submit(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewRunStore(db)
	ts := httptest.NewServer(monitor.NewServer(monitor.Config{Store: store}).Handler())
	defer ts.Close()

	points, slice := writeFixtures(t)
	outDir := t.TempDir()
	o, err := parseFlags([]string{
		"-points", points, "-slice", slice, "-submit", ts.URL,
		"-formats", "json", "-out", outDir, "-log-level", "error",
	}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), o, io.Discard))

	data, err := os.ReadFile(filepath.Join(outDir, "floorplan.json"))
	require.NoError(t, err)
	var plan floorplan.FloorPlan
	require.NoError(t, json.Unmarshal(data, &plan))
	assert.Len(t, plan.Walls, 4)

	runs, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRun_Errors(t *testing.T) {
	points, slice := writeFixtures(t)
	badConfig := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badConfig, []byte(`{"max_walls": 0}`), 0o644))

	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{
			name:    "missing points file",
			opts:    options{points: "/nonexistent/scan.xyz", slice: slice},
			wantErr: "failed to open",
		},
		{
			name:    "missing slice file",
			opts:    options{points: points, slice: "/nonexistent/slice.json"},
			wantErr: "failed to stat",
		},
		{
			name:    "invalid config",
			opts:    options{points: points, slice: slice, configPath: badConfig},
			wantErr: "invalid configuration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.opts
			o.formats = []export.Format{export.FormatSVG}
			o.outDir = t.TempDir()
			o.name = "x"
			o.seed = -1
			o.logLevel = "error"
			err := run(context.Background(), &o, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
