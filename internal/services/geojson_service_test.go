package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/geomark/internal/geojson"
	"github.com/stwalsh4118/geomark/internal/logger"
	"github.com/stwalsh4118/geomark/internal/models"
	"github.com/stwalsh4118/geomark/internal/observability"
)

// MockRecorder is a mock implementation of Recorder for testing
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ImportSucceeded(counts map[models.Kind]int, skipped int) {
	m.Called(counts, skipped)
}

func (m *MockRecorder) ImportFailed(reason string) {
	m.Called(reason)
}

func (m *MockRecorder) ExportSucceeded(points, lines, polygons int) {
	m.Called(points, lines, polygons)
}

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 1, "geometry": {"type": "Point", "coordinates": [37.6, 55.7]}},
    {"type": "Feature", "id": 2, "geometry": {"type": "LineString", "coordinates": [[37.6, 55.7], [37.7, 55.8]]}},
    {"type": "Feature", "id": 3, "geometry": {"type": "Circle", "coordinates": [37.6, 55.7]}},
    {"type": "Feature", "id": 4, "geometry": {"type": "Polygon", "coordinates": [[[37.6, 55.7], [37.7, 55.7], [37.7, 55.8], [37.6, 55.7]]]}}
  ]
}`

func newTestService(rec Recorder) GeoJSONService {
	return NewGeoJSONService(logger.New("test"), rec)
}

func TestImport_Success(t *testing.T) {
	// Arrange
	rec := new(MockRecorder)
	service := newTestService(rec)

	rec.On("ImportSucceeded", map[models.Kind]int{
		models.KindPoint:      1,
		models.KindLineString: 1,
		models.KindPolygon:    1,
	}, 1).Return()

	// Act
	result, err := service.Import(context.Background(), Upload{
		Filename: "shapes.geojson",
		Data:     []byte(sampleCollection),
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	assert.Equal(t, models.LatLng{55.7, 37.6}, result.Records[0].Geometry.(models.Point).Coordinates)
	assert.Equal(t, []int{2}, result.SkippedIndexes())
	rec.AssertExpectations(t)
}

func TestImport_AcceptsJSONContentType(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ImportSucceeded", mock.Anything, 0).Return()

	for _, ct := range []string{"application/json", "application/geo+json", "application/json; charset=utf-8", "text/json"} {
		t.Run(ct, func(t *testing.T) {
			result, err := service.Import(context.Background(), Upload{
				Filename:    "blob",
				ContentType: ct,
				Data:        []byte(`{"type":"FeatureCollection","features":[]}`),
			})
			require.NoError(t, err)
			assert.Empty(t, result.Records)
		})
	}
}

func TestImport_UnsupportedFileType(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
	}{
		{name: "shapefile", filename: "shapes.shp", contentType: "application/octet-stream"},
		{name: "no name no type", filename: "", contentType: ""},
		{name: "plain text", filename: "notes.txt", contentType: "text/plain"},
		{name: "malformed content type", filename: "blob", contentType: "application/json; ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockRecorder)
			service := newTestService(rec)
			rec.On("ImportFailed", observability.FailureUnsupported).Return()

			result, err := service.Import(context.Background(), Upload{
				Filename:    tt.filename,
				ContentType: tt.contentType,
				Data:        []byte(sampleCollection),
			})

			assert.ErrorIs(t, err, ErrUnsupportedFileType)
			assert.Nil(t, result)
			rec.AssertExpectations(t)
		})
	}
}

func TestImport_FileSuffixIsCaseInsensitive(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ImportSucceeded", mock.Anything, mock.Anything).Return()

	_, err := service.Import(context.Background(), Upload{
		Filename: "EXPORT.GeoJSON",
		Data:     []byte(sampleCollection),
	})
	require.NoError(t, err)
}

func TestImport_EmptyUpload(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ImportFailed", observability.FailureEmpty).Return()

	_, err := service.Import(context.Background(), Upload{Filename: "empty.json", Data: []byte(" \n ")})

	assert.ErrorIs(t, err, ErrEmptyUpload)
	rec.AssertExpectations(t)
}

func TestImport_ParseError(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ImportFailed", observability.FailureParse).Return()

	_, err := service.Import(context.Background(), Upload{Filename: "bad.geojson", Data: []byte("{not json")})

	var parseErr *geojson.ParseError
	require.True(t, errors.As(err, &parseErr), "expected wrapped *geojson.ParseError, got %v", err)
	assert.Contains(t, err.Error(), "bad.geojson")
	rec.AssertExpectations(t)
}

func TestImport_SchemaError(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ImportFailed", observability.FailureSchema).Return()

	_, err := service.Import(context.Background(), Upload{Filename: "points.json", Data: []byte(`{"type":"Feature"}`)})

	var schemaErr *geojson.SchemaError
	require.True(t, errors.As(err, &schemaErr), "expected wrapped *geojson.SchemaError, got %v", err)
	rec.AssertExpectations(t)
}

func TestImport_CanceledContext(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Import(ctx, Upload{Filename: "a.geojson", Data: []byte(sampleCollection)})

	assert.ErrorIs(t, err, context.Canceled)
	rec.AssertNotCalled(t, "ImportSucceeded", mock.Anything, mock.Anything)
}

func TestNewGeoJSONService_NilRecorder(t *testing.T) {
	service := NewGeoJSONService(nil, nil)

	result, err := service.Import(context.Background(), Upload{Filename: "a.geojson", Data: []byte(sampleCollection)})
	require.NoError(t, err)
	assert.Len(t, result.Records, 3)
}

func pointRecord(id int64, lat, lon float64) models.Record {
	return models.Record{ID: id, Geometry: models.Point{Coordinates: models.LatLng{lat, lon}}}
}

func lineRecord(id int64) models.Record {
	return models.Record{ID: id, Geometry: models.LineString{Coordinates: []models.LatLng{{55.7, 37.6}, {55.8, 37.7}}}}
}

func polygonRecord(id int64) models.Record {
	return models.Record{ID: id, Geometry: models.Polygon{Coordinates: [][]models.LatLng{
		{{55.7, 37.6}, {55.7, 37.7}, {55.8, 37.7}, {55.7, 37.6}},
	}}}
}

func TestExport_Success(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ExportSucceeded", 2, 0, 1).Return()

	data, err := service.Export(context.Background(), ExportRequest{
		Include:  []Category{CategoryPoints, CategoryPolygons},
		Points:   []models.Record{pointRecord(1, 55.7, 37.6), pointRecord(2, 55.8, 37.7)},
		Lines:    []models.Record{lineRecord(3)},
		Polygons: []models.Record{polygonRecord(4)},
	})
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       int `json:"id"`
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 3)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	assert.JSONEq(t, `[37.6,55.7]`, string(doc.Features[0].Geometry.Coordinates))
	assert.Equal(t, 1, doc.Features[1].ID)
	assert.Equal(t, "MultiPolygon", doc.Features[2].Geometry.Type)
	assert.Equal(t, 0, doc.Features[2].ID)
	rec.AssertExpectations(t)
}

func TestExport_NothingSelected(t *testing.T) {
	tests := []struct {
		name string
		req  ExportRequest
	}{
		{name: "no categories", req: ExportRequest{Points: []models.Record{pointRecord(1, 1, 2)}}},
		{name: "included categories empty", req: ExportRequest{
			Include: []Category{CategoryLines},
			Points:  []models.Record{pointRecord(1, 1, 2)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockRecorder)
			service := newTestService(rec)

			data, err := service.Export(context.Background(), tt.req)

			assert.ErrorIs(t, err, ErrNothingSelected)
			assert.Nil(t, data)
			rec.AssertNotCalled(t, "ExportSucceeded", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExport_KindMismatch(t *testing.T) {
	service := newTestService(new(MockRecorder))

	_, err := service.Export(context.Background(), ExportRequest{
		Include: []Category{CategoryLines},
		Lines:   []models.Record{lineRecord(1), pointRecord(2, 1, 2)},
	})

	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Contains(t, err.Error(), "lines[1]")
}

func TestExport_MismatchInExcludedCategoryIsIgnored(t *testing.T) {
	rec := new(MockRecorder)
	service := newTestService(rec)
	rec.On("ExportSucceeded", 1, 0, 0).Return()

	_, err := service.Export(context.Background(), ExportRequest{
		Include:  []Category{CategoryPoints},
		Points:   []models.Record{pointRecord(1, 1, 2)},
		Polygons: []models.Record{lineRecord(2)},
	})

	require.NoError(t, err)
}

func TestExport_UnknownCategory(t *testing.T) {
	service := newTestService(new(MockRecorder))

	_, err := service.Export(context.Background(), ExportRequest{Include: []Category{"circles"}})

	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Polygons ")
	require.NoError(t, err)
	assert.Equal(t, CategoryPolygons, c)

	_, err = ParseCategory("markers")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestIsGeoJSONUpload(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        bool
	}{
		{"a.geojson", "", true},
		{"a.JSON", "application/octet-stream", true},
		{"upload", "application/geo+json", true},
		{"upload", "application/json; charset=utf-8", true},
		{"a.kml", "application/vnd.google-earth.kml+xml", false},
		{"", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isGeoJSONUpload(tt.filename, tt.contentType), "%q %q", tt.filename, tt.contentType)
	}
}
