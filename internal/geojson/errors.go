package geojson

import "fmt"

// ParseError reports that an import document is not valid JSON.
// It is fatal: no records are returned alongside it.
type ParseError struct {
	Err    error
	Offset int64 // byte offset of the syntax error, or 0 when unknown
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("geojson: invalid JSON at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("geojson: invalid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports that a document parsed as JSON but is not a
// FeatureCollection (no "features" array). It is fatal like ParseError.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "geojson: unrecognized format: " + e.Reason
}

// Skip records one feature excluded from an import and why.
// Skips are data, not errors: the rest of the batch is still returned.
type Skip struct {
	Reason string `json:"reason"`
	Index  int    `json:"index"`
}

// Skip reasons.
const (
	ReasonNotObject           = "feature is not an object"
	ReasonBadID               = "id must be a number"
	ReasonFractionalID        = "id must be an integer"
	ReasonBadType             = "type must be a string"
	ReasonNoGeometry          = "geometry must be an object"
	ReasonUnsupportedGeometry = "unsupported geometry type"
	ReasonNoCoordinates       = "geometry.coordinates must be an array"
	ReasonBadCoordinates      = "malformed coordinates"
	ReasonEmptyGeometry       = "geometry has no positions"
)
