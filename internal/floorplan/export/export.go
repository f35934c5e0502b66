// Package export writes a finished floor plan in the formats the CLI and the
// HTTP monitor hand out: plan JSON, GeoJSON, the annotated SVG drawing and
// gonum/plot renderings (PNG, PDF).
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/floorplan/l6render"
	"github.com/banshee-data/floorplan.report/internal/security"
	"github.com/banshee-data/floorplan.report/internal/units"
)

// Format names an export encoding. Its value is also the file extension.
type Format string

const (
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
	FormatPDF     Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatGeoJSON, FormatSVG, FormatPNG, FormatPDF}

// ParseFormat accepts a format name case-insensitively, with or without a
// leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// WriteJSON writes plan as indented JSON.
func WriteJSON(w io.Writer, plan *floorplan.FloorPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("failed to encode floor plan: %w", err)
	}
	return nil
}

// Encode renders plan in format. opts only affects FormatSVG.
func Encode(plan *floorplan.FloorPlan, format Format, opts l6render.Options) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJSON:
		err = WriteJSON(&buf, plan)
	case FormatGeoJSON:
		err = WriteGeoJSON(&buf, plan, units.Feet)
	case FormatSVG:
		var doc string
		doc, err = l6render.RenderSVG(plan, opts)
		buf.WriteString(doc)
	case FormatPNG, FormatPDF:
		err = WritePlot(&buf, plan, format, DefaultPlotSize)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SafeOutputPath sanitises name and joins it onto dir, refusing anything
// that would land outside dir.
func SafeOutputPath(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty output file name")
	}
	return security.SafeJoin(dir, security.SanitizeFilename(name))
}

// WriteFiles encodes plan once per format and writes base.<format> files
// into dir, which must exist. It returns the written paths in format order.
func WriteFiles(dir, base string, plan *floorplan.FloorPlan, opts l6render.Options, formats ...Format) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		data, err := Encode(plan, f, opts)
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", f, err)
		}
		path, err := SafeOutputPath(dir, base+"."+string(f))
		if err != nil {
			return paths, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
