package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/geomark/internal/errors"
	"github.com/stwalsh4118/geomark/internal/geojson"
	"github.com/stwalsh4118/geomark/internal/middleware"
	"github.com/stwalsh4118/geomark/internal/models"
	"github.com/stwalsh4118/geomark/internal/services"
)

// uploadField is the multipart form field holding the GeoJSON file.
const uploadField = "file"

// GeoJSONHandler handles GeoJSON import and export requests.
type GeoJSONHandler struct {
	service        services.GeoJSONService
	exportFilename string
	maxImportBytes int64
}

// NewGeoJSONHandler creates a new GeoJSONHandler instance.
// exportFilename names the downloaded document and maxImportBytes is
// reported back to clients whose upload is too large.
func NewGeoJSONHandler(service services.GeoJSONService, exportFilename string, maxImportBytes int64) *GeoJSONHandler {
	if exportFilename == "" {
		exportFilename = geojson.Filename
	}
	return &GeoJSONHandler{
		service:        service,
		exportFilename: exportFilename,
		maxImportBytes: maxImportBytes,
	}
}

// ImportResponse represents the response for the import endpoint.
type ImportResponse struct {
	Records      []models.Record `json:"records"`
	Skipped      []geojson.Skip  `json:"skipped"`
	Count        int             `json:"count"`
	SkippedCount int             `json:"skipped_count"`
}

// ExportRequest represents the JSON body of the export endpoint.
type ExportRequest struct {
	Include  []string        `json:"include" binding:"required,dive,oneof=points lines polygons"`
	Points   []models.Record `json:"points"`
	Lines    []models.Record `json:"lines"`
	Polygons []models.Record `json:"polygons"`
}

// Import handles POST /api/v1/geojson/import endpoint.
// It accepts a multipart upload with a single "file" part or a raw JSON body.
func (h *GeoJSONHandler) Import(c *gin.Context) {
	log := middleware.GetLogger(c)

	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	if log != nil {
		log.Info("Processing import request", map[string]interface{}{
			"filename":     upload.Filename,
			"content_type": upload.ContentType,
			"bytes":        len(upload.Data),
		})
	}

	result, err := h.service.Import(c.Request.Context(), upload)
	if err != nil {
		h.importError(c, err)
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Records:      result.Records,
		Count:        len(result.Records),
		Skipped:      result.Skipped,
		SkippedCount: result.SkippedCount(),
	})
}

// readUpload extracts the document from the request. It writes the error
// response itself and returns false when the request is unusable.
func (h *GeoJSONHandler) readUpload(c *gin.Context) (services.Upload, bool) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType == "multipart/form-data" {
		form, err := c.MultipartForm()
		if err != nil {
			h.readError(c, err, "Invalid multipart form")
			return services.Upload{}, false
		}

		files := form.File[uploadField]
		switch {
		case len(files) == 0:
			apierrors.BadRequest(c, "Missing file", map[string]interface{}{"field": uploadField})
			return services.Upload{}, false
		case len(files) > 1:
			apierrors.BadRequest(c, "Only one file may be uploaded", map[string]interface{}{"files": len(files)})
			return services.Upload{}, false
		}

		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			apierrors.InternalServerError(c, "Failed to read uploaded file", err)
			return services.Upload{}, false
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			h.readError(c, err, "Failed to read uploaded file")
			return services.Upload{}, false
		}

		return services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}, true
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.readError(c, err, "Failed to read request body")
		return services.Upload{}, false
	}

	return services.Upload{
		Filename:    c.Query("filename"),
		ContentType: c.GetHeader("Content-Type"),
		Data:        data,
	}, true
}

func (h *GeoJSONHandler) readError(c *gin.Context, err error, message string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierrors.PayloadTooLarge(c, maxErr.Limit)
		return
	}
	apierrors.BadRequest(c, message, nil)
}

func (h *GeoJSONHandler) importError(c *gin.Context, err error) {
	var parseErr *geojson.ParseError
	var schemaErr *geojson.SchemaError

	switch {
	case errors.Is(err, services.ErrUnsupportedFileType):
		apierrors.UnsupportedMediaType(c, err.Error())
	case errors.Is(err, services.ErrEmptyUpload):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.As(err, &parseErr):
		apierrors.ParseError(c, "File is not valid JSON", map[string]interface{}{
			"offset": parseErr.Offset,
			"cause":  parseErr.Err.Error(),
		})
	case errors.As(err, &schemaErr):
		apierrors.UnrecognizedFormat(c, "File is not a GeoJSON FeatureCollection: "+schemaErr.Reason)
	default:
		apierrors.InternalServerError(c, "Failed to import GeoJSON", err)
	}
}

// Export handles POST /api/v1/geojson/export endpoint.
// It returns the selected records as a downloadable FeatureCollection.
func (h *GeoJSONHandler) Export(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		h.readError(c, err, "Invalid request body")
		return
	}

	include := make([]services.Category, 0, len(req.Include))
	for _, name := range req.Include {
		category, err := services.ParseCategory(name)
		if err != nil {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		include = append(include, category)
	}

	if log != nil {
		log.Info("Processing export request", map[string]interface{}{
			"include":  req.Include,
			"points":   len(req.Points),
			"lines":    len(req.Lines),
			"polygons": len(req.Polygons),
		})
	}

	data, err := h.service.Export(c.Request.Context(), services.ExportRequest{
		Include:  include,
		Points:   req.Points,
		Lines:    req.Lines,
		Polygons: req.Polygons,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNothingSelected):
			apierrors.NothingSelected(c)
		case errors.Is(err, services.ErrKindMismatch), errors.Is(err, services.ErrUnknownCategory):
			apierrors.BadRequest(c, err.Error(), nil)
		default:
			apierrors.InternalServerError(c, "Failed to export GeoJSON", err)
		}
		return
	}

	c.Header("Content-Disposition", contentDisposition(h.exportFilename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func contentDisposition(filename string) string {
	return `attachment; filename="` + strings.ReplaceAll(filename, `"`, "") + `"`
}
