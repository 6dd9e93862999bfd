// Package geojson converts between GeoJSON FeatureCollections and the
// map-native geometry records in package models.
//
// GeoJSON stores positions as [longitude, latitude]; records store them as
// [latitude, longitude]. The reorder happens here and nowhere else.
package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/stwalsh4118/geomark/internal/models"
)

// Geometry types accepted on import.
const (
	typePoint        = "Point"
	typeLineString   = "LineString"
	typePolygon      = "Polygon"
	typeMultiPolygon = "MultiPolygon"
)

// ImportResult holds the records produced by Import and the features it skipped.
type ImportResult struct {
	Records models.Records
	Skipped []Skip
}

// SkippedCount returns the number of features excluded from the batch.
func (r *ImportResult) SkippedCount() int {
	return len(r.Skipped)
}

// SkippedIndexes returns the positional indexes of skipped features, in input order.
func (r *ImportResult) SkippedIndexes() []int {
	indexes := make([]int, len(r.Skipped))
	for i, s := range r.Skipped {
		indexes[i] = s.Index
	}
	return indexes
}

// candidate is a feature that passed validation and is waiting for ids.
type candidate struct {
	geometries []models.Geometry
	id         int64
	multi      bool
}

// Import parses a GeoJSON FeatureCollection into records.
//
// It returns *ParseError when data is not JSON and *SchemaError when the
// document has no "features" array; both return no records. Individual
// features that fail validation are listed in ImportResult.Skipped and do not
// stop the batch. MultiPolygon features expand into one Polygon record per
// ring-group, so the result can hold more records than there were features.
func Import(data []byte) (*ImportResult, error) {
	features, err := decodeFeatures(data)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Records: make(models.Records, 0, len(features)),
		Skipped: []Skip{},
	}

	candidates := make([]candidate, 0, len(features))
	alloc := newIDAllocator()

	for index, raw := range features {
		c, skip := decodeFeature(index, raw)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		alloc.reserve(c.id)
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		if c.multi {
			for _, g := range c.geometries {
				result.Records = append(result.Records, models.Record{ID: alloc.fresh(), Geometry: g})
			}
			continue
		}
		result.Records = append(result.Records, models.Record{ID: alloc.claim(c.id), Geometry: c.geometries[0]})
	}

	return result, nil
}

// decodeFeatures parses the document and returns its "features" array.
func decodeFeatures(data []byte) ([]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, newParseError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{
			Err:    errors.New("unexpected data after top-level value"),
			Offset: dec.InputOffset(),
		}
	}

	root, ok := doc.(map[string]interface{})
	if !ok {
		return nil, &SchemaError{Reason: "top-level value is not an object"}
	}
	raw, ok := root["features"]
	if !ok || raw == nil {
		return nil, &SchemaError{Reason: "missing features"}
	}
	features, ok := raw.([]interface{})
	if !ok {
		return nil, &SchemaError{Reason: "features is not an array"}
	}
	return features, nil
}

func newParseError(err error) *ParseError {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	pe := &ParseError{Err: err}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		pe.Offset = syntaxErr.Offset
	}
	return pe
}

// decodeFeature validates one entry of "features" and converts its geometry.
func decodeFeature(index int, raw interface{}) (candidate, *Skip) {
	skip := func(reason string) (candidate, *Skip) {
		return candidate{}, &Skip{Index: index, Reason: reason}
	}

	feature, ok := raw.(map[string]interface{})
	if !ok {
		return skip(ReasonNotObject)
	}

	id := int64(index + 1)
	if rawID, present := feature["id"]; present && rawID != nil {
		n, ok := rawID.(json.Number)
		if !ok {
			return skip(ReasonBadID)
		}
		parsed, reason := integerID(n)
		if reason != "" {
			return skip(reason)
		}
		id = parsed
	}

	if _, ok := feature["type"].(string); !ok {
		return skip(ReasonBadType)
	}

	geometry, ok := feature["geometry"].(map[string]interface{})
	if !ok {
		return skip(ReasonNoGeometry)
	}

	geomType, _ := geometry["type"].(string)
	switch geomType {
	case typePoint, typeLineString, typePolygon, typeMultiPolygon:
	default:
		return skip(fmt.Sprintf("%s %q", ReasonUnsupportedGeometry, describe(geometry["type"])))
	}

	coords, ok := geometry["coordinates"].([]interface{})
	if !ok {
		return skip(ReasonNoCoordinates)
	}

	c := candidate{id: id}
	switch geomType {
	case typePoint:
		pos, ok := position(coords)
		if !ok {
			return skip(ReasonBadCoordinates)
		}
		c.geometries = []models.Geometry{models.Point{Coordinates: pos}}

	case typeLineString:
		line, ok := positions(coords)
		if !ok {
			return skip(ReasonBadCoordinates)
		}
		if len(line) == 0 {
			return skip(ReasonEmptyGeometry)
		}
		c.geometries = []models.Geometry{models.LineString{Coordinates: line}}

	case typePolygon:
		rings, ok := polygonRings(coords)
		if !ok {
			return skip(ReasonBadCoordinates)
		}
		if len(rings) == 0 {
			return skip(ReasonEmptyGeometry)
		}
		c.geometries = []models.Geometry{models.Polygon{Coordinates: rings}}

	case typeMultiPolygon:
		if len(coords) == 0 {
			return skip(ReasonEmptyGeometry)
		}
		c.multi = true
		c.geometries = make([]models.Geometry, 0, len(coords))
		for _, group := range coords {
			groupCoords, ok := group.([]interface{})
			if !ok {
				return skip(ReasonBadCoordinates)
			}
			rings, ok := polygonRings(groupCoords)
			if !ok {
				return skip(ReasonBadCoordinates)
			}
			if len(rings) == 0 {
				return skip(ReasonEmptyGeometry)
			}
			c.geometries = append(c.geometries, models.Polygon{Coordinates: rings})
		}
	}

	return c, nil
}

// integerID converts a JSON number to an id. Integral floats such as 3.0
// are accepted; anything else returns a skip reason.
func integerID(n json.Number) (int64, string) {
	if id, err := n.Int64(); err == nil {
		return id, ""
	}
	f, err := n.Float64()
	if err != nil || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, ReasonBadID
	}
	if f != math.Trunc(f) {
		return 0, ReasonFractionalID
	}
	return int64(f), ""
}

// position converts a GeoJSON [lon, lat, ...] position to [lat, lon].
// Extra ordinates must still be numbers and are dropped.
func position(raw []interface{}) (models.LatLng, bool) {
	if len(raw) < 2 {
		return models.LatLng{}, false
	}
	for _, v := range raw[2:] {
		if _, ok := number(v); !ok {
			return models.LatLng{}, false
		}
	}
	lon, ok := number(raw[0])
	if !ok {
		return models.LatLng{}, false
	}
	lat, ok := number(raw[1])
	if !ok {
		return models.LatLng{}, false
	}
	return models.LatLng{lat, lon}, true
}

func positions(raw []interface{}) ([]models.LatLng, bool) {
	out := make([]models.LatLng, 0, len(raw))
	for _, v := range raw {
		arr, ok := v.([]interface{})
		if !ok {
			return nil, false
		}
		pos, ok := position(arr)
		if !ok {
			return nil, false
		}
		out = append(out, pos)
	}
	return out, true
}

func polygonRings(raw []interface{}) ([][]models.LatLng, bool) {
	rings := make([][]models.LatLng, 0, len(raw))
	for _, v := range raw {
		arr, ok := v.([]interface{})
		if !ok {
			return nil, false
		}
		ring, ok := positions(arr)
		if !ok {
			return nil, false
		}
		rings = append(rings, ring)
	}
	return rings, true
}

func number(v interface{}) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// describe renders an arbitrary JSON value for a skip reason.
func describe(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// idAllocator hands out ids that are unique within one import batch.
type idAllocator struct {
	used     map[int64]struct{}
	reserved map[int64]struct{}
	next     int64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{
		used:     make(map[int64]struct{}),
		reserved: make(map[int64]struct{}),
		next:     1,
	}
}

// reserve records an id declared by the document so fresh ids avoid it.
func (a *idAllocator) reserve(id int64) {
	a.reserved[id] = struct{}{}
	if id >= a.next && id < math.MaxInt64 {
		a.next = id + 1
	}
}

// claim returns id if it is positive and unused, otherwise a fresh id.
func (a *idAllocator) claim(id int64) int64 {
	if id <= 0 {
		return a.fresh()
	}
	if _, taken := a.used[id]; taken {
		return a.fresh()
	}
	a.used[id] = struct{}{}
	return id
}

// fresh returns an id that is neither used nor declared anywhere in the document.
func (a *idAllocator) fresh() int64 {
	for {
		id := a.next
		if a.next == math.MaxInt64 {
			a.next = 1
		} else {
			a.next++
		}
		if _, taken := a.used[id]; taken {
			continue
		}
		if _, declared := a.reserved[id]; declared {
			continue
		}
		a.used[id] = struct{}{}
		return id
	}
}
