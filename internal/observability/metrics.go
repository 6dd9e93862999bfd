package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stwalsh4118/geomark/internal/models"
)

// Import failure reasons used as label values.
const (
	FailureParse       = "parse"
	FailureSchema      = "schema"
	FailureUnsupported = "unsupported_type"
	FailureEmpty       = "empty"
)

// Collector bundles the Prometheus metrics for the HTTP API and the
// GeoJSON import/export operations. All methods are safe on a nil receiver.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	ImportedRecords  *prometheus.CounterVec
	SkippedFeatures  prometheus.Counter
	ImportFailures   *prometheus.CounterVec
	ExportedFeatures *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on the same registry
// returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomark_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"}))
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geomark_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"}))
	if err != nil {
		return nil, err
	}

	imported, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomark_import_records_total",
		Help: "Records produced by GeoJSON imports, labeled by kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomark_import_skipped_features_total",
		Help: "Features skipped by GeoJSON imports because they failed validation.",
	}))
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomark_import_failures_total",
		Help: "GeoJSON imports rejected as a whole, labeled by reason.",
	}, []string{"reason"}))
	if err != nil {
		return nil, err
	}

	exported, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomark_export_features_total",
		Help: "Features written by GeoJSON exports, labeled by category.",
	}, []string{"category"}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		HTTPRequests:     requests,
		HTTPDurations:    durations,
		ImportedRecords:  imported,
		SkippedFeatures:  skipped,
		ImportFailures:   failures,
		ExportedFeatures: exported,
	}, nil
}

// Middleware records request counts and durations. Routes are labeled by
// their registered pattern so path parameters do not explode cardinality.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method

		c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDurations.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ImportSucceeded counts the records of a successful import and its skips.
func (c *Collector) ImportSucceeded(counts map[models.Kind]int, skipped int) {
	if c == nil {
		return
	}
	for kind, n := range counts {
		c.ImportedRecords.WithLabelValues(string(kind)).Add(float64(n))
	}
	c.SkippedFeatures.Add(float64(skipped))
}

// ImportFailed counts an import rejected as a whole.
func (c *Collector) ImportFailed(reason string) {
	if c == nil {
		return
	}
	c.ImportFailures.WithLabelValues(reason).Inc()
}

// ExportSucceeded counts the features written per category.
func (c *Collector) ExportSucceeded(points, lines, polygons int) {
	if c == nil {
		return
	}
	c.ExportedFeatures.WithLabelValues("points").Add(float64(points))
	c.ExportedFeatures.WithLabelValues("lines").Add(float64(lines))
	c.ExportedFeatures.WithLabelValues("polygons").Add(float64(polygons))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return nil, err
	}
	return counter, nil
}
