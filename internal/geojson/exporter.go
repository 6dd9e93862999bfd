package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/stwalsh4118/geomark/internal/models"
)

// Filename is the default name of an exported document.
const Filename = "geojson.json"

// Selection is a snapshot of the shapes to export, grouped by category.
// It holds plain coordinates, never handles into live UI state.
// A nil or empty category contributes no features.
type Selection struct {
	Points   []models.Point
	Lines    []models.LineString
	Polygons []models.Polygon
}

// Len returns the number of features the selection will export.
func (s Selection) Len() int {
	return len(s.Points) + len(s.Lines) + len(s.Polygons)
}

// Export builds a FeatureCollection from the selection.
//
// Features are emitted points first, then lines, then polygons. Each feature's
// id is its 0-based position within its category. Polygons are written as
// single-member MultiPolygons. Every coordinate is copied and reordered to
// [lon, lat], so the document never aliases the selection.
func Export(sel Selection) *orbjson.FeatureCollection {
	fc := orbjson.NewFeatureCollection()
	fc.Features = make([]*orbjson.Feature, 0, sel.Len())

	for i, p := range sel.Points {
		fc.Append(newFeature(i, toPoint(p.Coordinates)))
	}

	for i, l := range sel.Lines {
		fc.Append(newFeature(i, toLineString(l.Coordinates)))
	}

	for i, p := range sel.Polygons {
		fc.Append(newFeature(i, orb.MultiPolygon{toPolygon(p.Coordinates)}))
	}

	return fc
}

// Marshal exports the selection and encodes it as UTF-8 JSON.
func Marshal(sel Selection) ([]byte, error) {
	data, err := json.Marshal(Export(sel))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	return data, nil
}

func newFeature(id int, g orb.Geometry) *orbjson.Feature {
	f := orbjson.NewFeature(g)
	f.ID = id
	return f
}

func toPoint(p models.LatLng) orb.Point {
	return orb.Point{p.Lon(), p.Lat()}
}

func toLineString(coords []models.LatLng) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, p := range coords {
		ls[i] = toPoint(p)
	}
	return ls
}

func toPolygon(rings [][]models.LatLng) orb.Polygon {
	poly := make(orb.Polygon, len(rings))
	for i, ring := range rings {
		r := make(orb.Ring, len(ring))
		for j, p := range ring {
			r[j] = toPoint(p)
		}
		poly[i] = r
	}
	return poly
}
