package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected slog.Level
	}{
		{"debug level", LevelDebug, slog.LevelDebug},
		{"info level", LevelInfo, slog.LevelInfo},
		{"warn level", LevelWarn, slog.LevelWarn},
		{"error level", LevelError, slog.LevelError},
		{"upper case", LogLevel("DEBUG"), slog.LevelDebug},
		{"unknown falls back to info", LogLevel("verbose"), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelWarn {
		t.Errorf("Expected default level %s, got %s", LevelWarn, cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("Expected default format %s, got %s", FormatText, cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got '%s'", cfg.Output)
	}
	if cfg.Rotation.Enabled {
		t.Error("Expected rotation to be disabled by default")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("stderr json logger", func(t *testing.T) {
		logger, err := New(Config{Level: LevelError, Format: FormatJSON, Output: "stderr"})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		if logger == nil {
			t.Fatal("Logger should not be nil")
		}
	})

	t.Run("file logger", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "scanfinder.log")

		logger, err := New(Config{Level: LevelDebug, Format: FormatText, Output: logFile})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		logger.Info("file message", "key", "value")

		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "file message") {
			t.Errorf("Log file should contain message, got %q", string(data))
		}
	})

	t.Run("rotating file logger", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "rotating.log")

		logger, err := New(Config{
			Level:    LevelInfo,
			Format:   FormatJSON,
			Output:   logFile,
			Rotation: RotationConfig{Enabled: true, MaxSizeMB: 1, MaxBackups: 1},
		})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		logger.Info("rotated message")

		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "rotated message") {
			t.Errorf("Log file should contain message, got %q", string(data))
		}
	})
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelDebug, Format: FormatJSON}, &buf)

	logger.WithComponent("orchestrator").WithBatchID("b-1").InfoScan("Probe finished", "10.0.0.1", "success", true)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	expected := map[string]any{
		"msg":       "Probe finished",
		"component": "orchestrator",
		"batch_id":  "b-1",
		"target":    "10.0.0.1",
		"success":   true,
	}
	for key, want := range expected {
		if entry[key] != want {
			t.Errorf("Expected %s=%v, got %v", key, want, entry[key])
		}
	}
}

func TestDefaultLoggerReplacement(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(Config{Level: LevelInfo, Format: FormatText}, &buf))

	Debug("hidden")
	Info("shown")
	ErrorScan("probe failed", "10.0.0.2", os.ErrDeadlineExceeded)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Debug message should be filtered at info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("Info message should be written")
	}
	if !strings.Contains(out, "target=10.0.0.2") {
		t.Errorf("Expected target field in %q", out)
	}
}
