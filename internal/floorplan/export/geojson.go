package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/units"
)

// Feature kinds in the "kind" property.
const (
	KindWall   = "wall"
	KindBounds = "bounds"
)

// GeoJSON converts plan into a feature collection in plan coordinates: one
// LineString per wall, then the bounds as a Polygon when the plan has
// points. The *_feet properties are always in feet; length, thickness,
// width, height and area repeat them in unit, which must be one of
// units.ValidUnits.
func GeoJSON(plan *floorplan.FloorPlan, unit string) (*geojson.FeatureCollection, error) {
	if !units.IsValid(unit) {
		return nil, fmt.Errorf("unsupported units %q, valid units are: %s", unit, units.GetValidUnitsString())
	}
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"units": unit}
	if plan == nil {
		return fc, nil
	}
	scale := plan.Metadata.ScaleFactor
	perFoot := units.ConvertLength(1, unit)

	var bound orb.Bound
	for i, w := range plan.Walls {
		ls := orb.LineString{{w.Start.X, w.Start.Y}, {w.End.X, w.End.Y}}
		if i == 0 {
			bound = ls.Bound()
		} else {
			bound = bound.Union(ls.Bound())
		}

		lengthFeet := w.LengthFeet
		if scale > 0 {
			lengthFeet = planar.Length(ls) / scale
		}
		f := geojson.NewFeature(ls)
		f.ID = i
		f.Properties["kind"] = KindWall
		f.Properties["length_feet"] = lengthFeet
		f.Properties["thickness_feet"] = w.Thickness
		f.Properties["length"] = units.ConvertLength(lengthFeet, unit)
		f.Properties["thickness"] = units.ConvertLength(w.Thickness, unit)
		f.Properties["label"] = units.FeetToFeetInches(lengthFeet)
		fc.Append(f)
	}

	if plan.Metadata.PointCount > 0 && scale > 0 {
		b := plan.Bounds
		pb := orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
		poly := pb.ToPolygon()
		f := geojson.NewFeature(poly)
		f.Properties["kind"] = KindBounds
		areaSqFeet := planar.Area(poly) / (scale * scale)
		f.Properties["width_feet"] = b.Width / scale
		f.Properties["height_feet"] = b.Height / scale
		f.Properties["area_sq_feet"] = areaSqFeet
		f.Properties["width"] = units.ConvertLength(b.Width/scale, unit)
		f.Properties["height"] = units.ConvertLength(b.Height/scale, unit)
		f.Properties["area"] = areaSqFeet * perFoot * perFoot
		fc.Append(f)
		if len(plan.Walls) == 0 {
			bound = pb
		} else {
			bound = bound.Union(pb)
		}
	}

	if len(fc.Features) > 0 {
		fc.BBox = geojson.NewBBox(bound)
	}
	fc.ExtraMembers["metadata"] = plan.Metadata
	return fc, nil
}

// WriteGeoJSON writes GeoJSON(plan, unit).
func WriteGeoJSON(w io.Writer, plan *floorplan.FloorPlan, unit string) error {
	fc, err := GeoJSON(plan, unit)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}
