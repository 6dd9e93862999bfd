package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIVersion is the current version of the API
const APIVersion = "0.1.0"

// HealthHandler handles health check and info endpoints.
type HealthHandler struct {
	startTime      time.Time
	env            string
	maxImportBytes int64
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(env string, maxImportBytes int64) *HealthHandler {
	return &HealthHandler{
		startTime:      time.Now(),
		env:            env,
		maxImportBytes: maxImportBytes,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version        string   `json:"version"`
	Environment    string   `json:"environment"`
	Uptime         string   `json:"uptime"`
	GeometryTypes  []string `json:"geometry_types"`
	MaxImportBytes int64    `json:"max_import_bytes"`
}

// importGeometryTypes lists the GeoJSON geometry types the importer accepts.
var importGeometryTypes = []string{"Point", "LineString", "Polygon", "MultiPolygon"}

// Health handles GET /health endpoint.
// The service holds no external dependencies, so it is healthy whenever it
// can answer.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Info handles GET /api/v1/info endpoint.
// Returns API metadata including version, environment, uptime, and import limits.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:        APIVersion,
		Environment:    h.env,
		Uptime:         formatUptime(time.Since(h.startTime)),
		GeometryTypes:  importGeometryTypes,
		MaxImportBytes: h.maxImportBytes,
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
