package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("toggle completed",
		slog.String("user_id", "u-123"),
		slog.String("list", "compare/course"),
		slog.Int("count", 3),
	)

	entry := decode(t, &buf)
	if entry["msg"] != "toggle completed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "toggle completed")
	}
	if entry["user_id"] != "u-123" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "u-123")
	}
	if entry["list"] != "compare/course" {
		t.Errorf("list = %v, want %q", entry["list"], "compare/course")
	}
	if entry["count"] != float64(3) {
		t.Errorf("count = %v, want 3", entry["count"])
	}
	if entry["service"] != ServiceName {
		t.Errorf("service = %v, want %q", entry["service"], ServiceName)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("INFOはWARNレベルで出力されないべき: %s", buf.String())
	}

	l.Warn("kept")
	entry := decode(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
}

func TestSetupDefault_SetsGlobalLoggerWithAdjustableLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	level := SetupDefault(&buf)

	slog.Debug("before")
	if buf.Len() != 0 {
		t.Fatalf("初期レベルはINFOであるべき: %s", buf.String())
	}

	level.Set(slog.LevelDebug)
	slog.Debug("after", slog.String("test_key", "test_val"))

	entry := decode(t, &buf)
	if entry["msg"] != "after" {
		t.Errorf("msg = %v, want %q", entry["msg"], "after")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %v, want %q", entry["test_key"], "test_val")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
