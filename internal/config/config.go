package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	Import  ImportConfig
	Export  ExportConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// ImportConfig limits uploaded GeoJSON documents.
type ImportConfig struct {
	MaxBytes int64
}

// ExportConfig controls the downloadable export.
type ExportConfig struct {
	Filename string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Path    string
	Enabled bool
}

// DefaultMaxImportBytes caps an uploaded document at 10 MiB.
const DefaultMaxImportBytes = 10 << 20

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("IMPORT_MAX_BYTES", DefaultMaxImportBytes)
	v.SetDefault("EXPORT_FILENAME", "geojson.json")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Import: ImportConfig{
			MaxBytes: v.GetInt64("IMPORT_MAX_BYTES"),
		},
		Export: ExportConfig{
			Filename: v.GetString("EXPORT_FILENAME"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Import.MaxBytes < 1 {
		return fmt.Errorf("IMPORT_MAX_BYTES must be at least 1")
	}

	// The filename ends up in a Content-Disposition header
	name := c.Export.Filename
	if name == "" {
		return fmt.Errorf("EXPORT_FILENAME is required")
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, "\"\r\n") {
		return fmt.Errorf("EXPORT_FILENAME must be a plain file name, got %q", name)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("METRICS_PATH must start with /")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
