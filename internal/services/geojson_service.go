package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/stwalsh4118/geomark/internal/geojson"
	"github.com/stwalsh4118/geomark/internal/logger"
	"github.com/stwalsh4118/geomark/internal/models"
	"github.com/stwalsh4118/geomark/internal/observability"
)

// Service-level errors
var (
	ErrUnsupportedFileType = errors.New("unsupported file type: expected a .geojson or .json file")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
	ErrNothingSelected     = errors.New("nothing selected to export")
	ErrKindMismatch        = errors.New("record kind does not match its category")
	ErrUnknownCategory     = errors.New("unknown export category")
)

// Category names one group of records in an export.
type Category string

// Export categories, in the order they appear in the document.
const (
	CategoryPoints   Category = "points"
	CategoryLines    Category = "lines"
	CategoryPolygons Category = "polygons"
)

// AllCategories lists every export category.
var AllCategories = []Category{CategoryPoints, CategoryLines, CategoryPolygons}

// ParseCategory maps a category name to a Category.
func ParseCategory(name string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(name))); c {
	case CategoryPoints, CategoryLines, CategoryPolygons:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
}

// Upload is a GeoJSON document submitted for import.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportRequest selects the records to export, grouped by category.
// Only categories listed in Include are written.
type ExportRequest struct {
	Include  []Category
	Points   []models.Record
	Lines    []models.Record
	Polygons []models.Record
}

// Recorder receives the outcome of each operation.
// *observability.Collector satisfies it.
type Recorder interface {
	ImportSucceeded(counts map[models.Kind]int, skipped int)
	ImportFailed(reason string)
	ExportSucceeded(points, lines, polygons int)
}

type nopRecorder struct{}

func (nopRecorder) ImportSucceeded(map[models.Kind]int, int) {}
func (nopRecorder) ImportFailed(string)                      {}
func (nopRecorder) ExportSucceeded(int, int, int)            {}

// GeoJSONService defines the interface for GeoJSON import and export.
type GeoJSONService interface {
	// Import converts an uploaded FeatureCollection into records.
	// Returns ErrUnsupportedFileType if the upload is not a JSON file.
	// Returns ErrEmptyUpload if the upload has no content.
	// Returns an error wrapping *geojson.ParseError or *geojson.SchemaError
	// when the document is rejected as a whole.
	Import(ctx context.Context, upload Upload) (*geojson.ImportResult, error)

	// Export serializes the selected records as a FeatureCollection.
	// Returns ErrNothingSelected if no included category has a record.
	// Returns ErrKindMismatch if a record is filed under the wrong category.
	Export(ctx context.Context, req ExportRequest) ([]byte, error)
}

// geojsonService is the concrete implementation of GeoJSONService.
type geojsonService struct {
	log     *logger.Logger
	metrics Recorder
}

// NewGeoJSONService creates a new instance of GeoJSONService.
// A nil recorder disables metrics.
func NewGeoJSONService(log *logger.Logger, metrics Recorder) GeoJSONService {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &geojsonService{
		log:     log,
		metrics: metrics,
	}
}

// Import validates the upload, runs the importer, and logs skipped features.
func (s *geojsonService) Import(ctx context.Context, upload Upload) (*geojson.ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"filename":     upload.Filename,
		"content_type": upload.ContentType,
		"bytes":        len(upload.Data),
	}

	if !isGeoJSONUpload(upload.Filename, upload.ContentType) {
		s.log.Warn("Rejected upload with unsupported file type", fields)
		s.metrics.ImportFailed(observability.FailureUnsupported)
		return nil, ErrUnsupportedFileType
	}

	if len(bytes.TrimSpace(upload.Data)) == 0 {
		s.log.Warn("Rejected empty upload", fields)
		s.metrics.ImportFailed(observability.FailureEmpty)
		return nil, ErrEmptyUpload
	}

	s.log.Info("Importing GeoJSON", fields)

	result, err := geojson.Import(upload.Data)
	if err != nil {
		var parseErr *geojson.ParseError
		if errors.As(err, &parseErr) {
			s.metrics.ImportFailed(observability.FailureParse)
		} else {
			s.metrics.ImportFailed(observability.FailureSchema)
		}
		s.log.Warn("GeoJSON import rejected", map[string]interface{}{
			"filename": upload.Filename,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to import %s: %w", displayName(upload.Filename), err)
	}

	for _, skip := range result.Skipped {
		s.log.Warn("Skipped GeoJSON feature", map[string]interface{}{
			"filename": upload.Filename,
			"index":    skip.Index,
			"reason":   skip.Reason,
		})
	}

	counts := result.Records.CountByKind()
	s.metrics.ImportSucceeded(counts, result.SkippedCount())

	s.log.Info("GeoJSON imported", map[string]interface{}{
		"filename":    upload.Filename,
		"records":     len(result.Records),
		"points":      counts[models.KindPoint],
		"lines":       counts[models.KindLineString],
		"polygons":    counts[models.KindPolygon],
		"skipped":     result.SkippedCount(),
		"skipped_idx": result.SkippedIndexes(),
	})

	return result, nil
}

// Export builds a selection from the included categories and serializes it.
func (s *geojsonService) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel, err := selectionFor(req)
	if err != nil {
		s.log.Warn("Rejected export request", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	if sel.Len() == 0 {
		s.log.Warn("Export requested with nothing selected", map[string]interface{}{
			"include": req.Include,
		})
		return nil, ErrNothingSelected
	}

	data, err := geojson.Marshal(sel)
	if err != nil {
		s.log.Error("Failed to encode FeatureCollection", err, nil)
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}

	s.metrics.ExportSucceeded(len(sel.Points), len(sel.Lines), len(sel.Polygons))

	s.log.Info("GeoJSON exported", map[string]interface{}{
		"points":   len(sel.Points),
		"lines":    len(sel.Lines),
		"polygons": len(sel.Polygons),
		"bytes":    len(data),
	})

	return data, nil
}

// selectionFor collects the geometries of each included category, checking
// that every record matches the kind its category holds.
func selectionFor(req ExportRequest) (geojson.Selection, error) {
	var sel geojson.Selection
	for _, category := range req.Include {
		switch category {
		case CategoryPoints:
			sel.Points = make([]models.Point, 0, len(req.Points))
			for i, r := range req.Points {
				p, ok := r.Geometry.(models.Point)
				if !ok {
					return geojson.Selection{}, kindMismatch(category, i, r)
				}
				sel.Points = append(sel.Points, p)
			}
		case CategoryLines:
			sel.Lines = make([]models.LineString, 0, len(req.Lines))
			for i, r := range req.Lines {
				l, ok := r.Geometry.(models.LineString)
				if !ok {
					return geojson.Selection{}, kindMismatch(category, i, r)
				}
				sel.Lines = append(sel.Lines, l)
			}
		case CategoryPolygons:
			sel.Polygons = make([]models.Polygon, 0, len(req.Polygons))
			for i, r := range req.Polygons {
				p, ok := r.Geometry.(models.Polygon)
				if !ok {
					return geojson.Selection{}, kindMismatch(category, i, r)
				}
				sel.Polygons = append(sel.Polygons, p)
			}
		default:
			return geojson.Selection{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
	}
	return sel, nil
}

func kindMismatch(category Category, index int, r models.Record) error {
	kind := "none"
	if r.Geometry != nil {
		kind = string(r.Kind())
	}
	return fmt.Errorf("%w: %s[%d] has kind %s", ErrKindMismatch, category, index, kind)
}

// isGeoJSONUpload accepts JSON media types or a .geojson/.json file name.
func isGeoJSONUpload(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".geojson", ".json":
		return true
	}
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/json", "application/geo+json", "text/json":
		return true
	}
	return false
}

func displayName(filename string) string {
	if filename == "" {
		return "upload"
	}
	return filename
}
