package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Expected default level to be info, got %s", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("Expected default format to be json, got %s", cfg.Format)
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logDebug  bool
		wantDebug bool
	}{
		{name: "info_level", level: "info", logDebug: true, wantDebug: false},
		{name: "debug_level", level: "debug", logDebug: true, wantDebug: true},
		{name: "warn_level", level: "WARN", logDebug: true, wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := Setup(Config{Level: tt.level, Output: &buf})
			if err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			logger.Debug().Msg("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v (output %q)", got, tt.wantDebug, buf.String())
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestSetup_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Config{Level: "info", Service: "api-proxy", Output: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info().Msg("hello")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if event["service"] != "api-proxy" {
		t.Errorf("service = %v, want api-proxy", event["service"])
	}
	if _, ok := event["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestSetup_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := Setup(Config{Level: "info", Format: FormatConsole, Output: &buf})

	logger.Info().Msg("console message")
	if out := buf.String(); !strings.Contains(out, "console message") || strings.HasPrefix(out, "{") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestSetup_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	_, err := Setup(Config{Level: "verbose", Output: &buf})
	if err == nil {
		t.Error("expected error for unknown level")
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", zerolog.GlobalLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"ERROR", zerolog.ErrorLevel, false},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Output: &buf})

	logger := NewLogger("api-client")
	logger.Info().Msg("component test")

	if !strings.Contains(buf.String(), `"component":"api-client"`) {
		t.Errorf("expected component field, got %q", buf.String())
	}
}
