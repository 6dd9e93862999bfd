package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(level zerolog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).Level(level).With().Timestamp().Logger()
	return &Logger{zlog: zlog}, &buf
}

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production", "test"} {
		t.Run(env, func(t *testing.T) {
			log := New(env)
			if log == nil {
				t.Fatal("Expected logger to be created")
			}
			if log.GetZerolog() == nil {
				t.Error("Expected zerolog instance to be available")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		want  zerolog.Level
	}{
		{name: "development default", env: "development", want: zerolog.DebugLevel},
		{name: "production default", env: "production", want: zerolog.InfoLevel},
		{name: "explicit warn", env: "development", level: "warn", want: zerolog.WarnLevel},
		{name: "explicit debug in production", env: "production", level: "debug", want: zerolog.DebugLevel},
		{name: "unknown level falls back", env: "production", level: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.env, tt.level); got != tt.want {
				t.Errorf("parseLevel(%q, %q) = %v, want %v", tt.env, tt.level, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "warn")

	log.Info("import finished", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %s", buf.String())
	}

	log.Warn("feature skipped", map[string]interface{}{"index": 2})
	if !strings.Contains(buf.String(), "feature skipped") {
		t.Error("Expected warn message to be written")
	}
}

func TestLevels(t *testing.T) {
	log, buf := newBufferLogger(zerolog.DebugLevel)

	log.Debug("debug message", map[string]interface{}{"kind": "Point"})
	log.Info("info message", map[string]interface{}{"records": 4})
	log.Warn("warning message", map[string]interface{}{"skipped": 1})
	log.Error("error occurred", errors.New("unexpected end of JSON input"), map[string]interface{}{
		"filename": "shapes.geojson",
	})

	output := buf.String()
	for _, want := range []string{
		"debug message", "Point",
		"info message", "records",
		"warning message", "skipped",
		"error occurred", "unexpected end of JSON input", "shapes.geojson",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected log output to contain %q", want)
		}
	}
}

func TestWith(t *testing.T) {
	log, buf := newBufferLogger(zerolog.DebugLevel)

	child := log.With(map[string]interface{}{
		"component": "importer",
		"version":   "1.0",
	})
	child.Info("test message", nil)

	output := buf.String()
	if !strings.Contains(output, "importer") {
		t.Error("Expected log output to contain component field from context")
	}
	if !strings.Contains(output, "1.0") {
		t.Error("Expected log output to contain version field from context")
	}
}

func TestWithRequestID(t *testing.T) {
	log, buf := newBufferLogger(zerolog.DebugLevel)

	log.WithRequestID("req-12345").Info("request received", nil)

	output := buf.String()
	if !strings.Contains(output, "req-12345") {
		t.Error("Expected log output to contain request ID")
	}
	if !strings.Contains(output, "request_id") {
		t.Error("Expected log output to have request_id field")
	}
}

func TestLogLevels_Production(t *testing.T) {
	log, buf := newBufferLogger(zerolog.InfoLevel)

	log.Debug("debug message", nil)
	if strings.Contains(buf.String(), "debug message") {
		t.Error("Debug message should not appear at info level")
	}

	log.Info("info message", nil)
	if !strings.Contains(buf.String(), "info message") {
		t.Error("Info message should appear at info level")
	}
}

func TestJSONOutput(t *testing.T) {
	log, buf := newBufferLogger(zerolog.DebugLevel)

	log.Info("test json", map[string]interface{}{"key": "value"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v", err)
	}
	if entry["message"] != "test json" {
		t.Error("Expected JSON to contain message field")
	}
	if entry["key"] != "value" {
		t.Error("Expected JSON to contain key field")
	}
}

func TestNop(t *testing.T) {
	// Should not panic and should not write anywhere
	log := Nop()
	log.Info("discarded", map[string]interface{}{"a": 1})
	log.With(nil).Warn("discarded", nil)
}
