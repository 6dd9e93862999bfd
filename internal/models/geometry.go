package models

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the geometry type stored in a Record.
type Kind string

// Stored geometry kinds. MultiPolygon is never stored; each of its
// ring-groups becomes its own Polygon.
const (
	KindPoint      Kind = "Point"
	KindLineString Kind = "LineString"
	KindPolygon    Kind = "Polygon"
)

// Valid reports whether k is one of the stored kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPoint, KindLineString, KindPolygon:
		return true
	}
	return false
}

// LatLng is a coordinate pair in map-native order: [latitude, longitude].
// GeoJSON uses the opposite order; conversion happens only in the geojson package.
type LatLng [2]float64

// Lat returns the latitude component.
func (p LatLng) Lat() float64 { return p[0] }

// Lon returns the longitude component.
func (p LatLng) Lon() float64 { return p[1] }

// UnmarshalJSON decodes a position of at least two numbers. Extra ordinates
// such as altitude are dropped; shorter positions are an error.
func (p *LatLng) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("position needs at least 2 numbers, got %d", len(raw))
	}
	p[0], p[1] = raw[0], raw[1]
	return nil
}

// Geometry is the tagged variant carried by a Record.
// It is implemented by Point, LineString and Polygon only.
type Geometry interface {
	Kind() Kind
	isGeometry()
}

// Point is a single [lat, lon] position.
type Point struct {
	Coordinates LatLng
}

// LineString is an ordered sequence of [lat, lon] positions.
type LineString struct {
	Coordinates []LatLng
}

// Polygon is an ordered sequence of linear rings. The first ring is the
// exterior boundary and the rest are holes; closure and winding are not checked.
type Polygon struct {
	Coordinates [][]LatLng
}

func (Point) Kind() Kind      { return KindPoint }
func (LineString) Kind() Kind { return KindLineString }
func (Polygon) Kind() Kind    { return KindPolygon }

func (Point) isGeometry()      {}
func (LineString) isGeometry() {}
func (Polygon) isGeometry()    {}

// Record is the unit exchanged between the UI layer and the geojson package.
// IDs are unique within one import batch only.
type Record struct {
	Geometry Geometry
	ID       int64
}

// Kind returns the kind of the record's geometry, or "" if it has none.
func (r Record) Kind() Kind {
	if r.Geometry == nil {
		return ""
	}
	return r.Geometry.Kind()
}

// recordJSON is the wire form of a Record.
type recordJSON struct {
	ID          int64           `json:"id"`
	Kind        Kind            `json:"kind"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON encodes the record as {"id", "kind", "coordinates"} with
// coordinates in [lat, lon] order.
func (r Record) MarshalJSON() ([]byte, error) {
	var coords interface{}
	switch g := r.Geometry.(type) {
	case Point:
		coords = g.Coordinates
	case LineString:
		coords = nonNilPositions(g.Coordinates)
	case Polygon:
		rings := make([][]LatLng, len(g.Coordinates))
		for i, ring := range g.Coordinates {
			rings[i] = nonNilPositions(ring)
		}
		coords = rings
	default:
		return nil, fmt.Errorf("record %d has no geometry", r.ID)
	}

	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record coordinates: %w", err)
	}

	return json.Marshal(recordJSON{
		ID:          r.ID,
		Kind:        r.Geometry.Kind(),
		Coordinates: raw,
	})
}

// UnmarshalJSON decodes a record, dispatching on its kind.
func (r *Record) UnmarshalJSON(data []byte) error {
	var doc recordJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if !doc.Kind.Valid() {
		return fmt.Errorf("record %d: unsupported kind %q", doc.ID, doc.Kind)
	}
	if len(doc.Coordinates) == 0 || string(doc.Coordinates) == "null" {
		return fmt.Errorf("record %d: coordinates are required", doc.ID)
	}

	switch doc.Kind {
	case KindPoint:
		var c LatLng
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return fmt.Errorf("record %d: invalid Point coordinates: %w", doc.ID, err)
		}
		r.Geometry = Point{Coordinates: c}
	case KindLineString:
		var c []LatLng
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return fmt.Errorf("record %d: invalid LineString coordinates: %w", doc.ID, err)
		}
		if len(c) == 0 {
			return fmt.Errorf("record %d: LineString needs at least one position", doc.ID)
		}
		r.Geometry = LineString{Coordinates: c}
	case KindPolygon:
		var c [][]LatLng
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return fmt.Errorf("record %d: invalid Polygon coordinates: %w", doc.ID, err)
		}
		if len(c) == 0 {
			return fmt.Errorf("record %d: Polygon needs at least one ring", doc.ID)
		}
		r.Geometry = Polygon{Coordinates: c}
	}

	r.ID = doc.ID
	return nil
}

func nonNilPositions(p []LatLng) []LatLng {
	if p == nil {
		return []LatLng{}
	}
	return p
}

// Records is an ordered batch of records.
type Records []Record

// Group splits the batch into its three categories, preserving the
// relative order of records within each category. Records without a
// geometry are dropped.
func (rs Records) Group() (points, lines, polygons Records) {
	for _, r := range rs {
		switch r.Kind() {
		case KindPoint:
			points = append(points, r)
		case KindLineString:
			lines = append(lines, r)
		case KindPolygon:
			polygons = append(polygons, r)
		}
	}
	return points, lines, polygons
}

// CountByKind returns how many records of each kind the batch holds.
func (rs Records) CountByKind() map[Kind]int {
	counts := make(map[Kind]int, 3)
	for _, r := range rs {
		if k := r.Kind(); k != "" {
			counts[k]++
		}
	}
	return counts
}
