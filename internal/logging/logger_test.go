package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "DEBUG", Pretty: false, Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Error("expected debug message to be logged at DEBUG level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("expected info message to be logged at DEBUG level")
	}
}

func TestNew_InfoLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "INFO", Pretty: false, Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("expected debug message to be suppressed at INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("expected info message to be logged at INFO level")
	}
}

func TestNew_CaseInsensitiveLevel(t *testing.T) {
	logger, err := New(Config{Level: "warning", Pretty: false, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected WarnLevel, got %v", logger.GetLevel())
	}
}

func TestNew_InvalidLevelIsConfigError(t *testing.T) {
	_, err := New(Config{Level: "VERBOSE", Pretty: false, Output: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected an error for an invalid log level")
	}
	if !strings.Contains(err.Error(), "VERBOSE") {
		t.Errorf("expected error to name the offending level, got: %v", err)
	}
}

func TestParseLevel_AllFiveLevels(t *testing.T) {
	cases := map[string]zerolog.Level{
		"DEBUG":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"WARNING":  zerolog.WarnLevel,
		"ERROR":    zerolog.ErrorLevel,
		"CRITICAL": zerolog.PanicLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithComponent(Config{Level: "INFO", Pretty: false, Output: &buf}, "mimic")
	if err != nil {
		t.Fatalf("NewWithComponent returned error: %v", err)
	}
	logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"component":"mimic"`) {
		t.Errorf("expected component field in output, got: %s", buf.String())
	}
}
