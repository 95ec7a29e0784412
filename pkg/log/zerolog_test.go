package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo, FormatJSON).With(RunIDKey, "abc")

	logger.Debug("hidden")
	logger.Info("fold finished", FoldKey, 3, SubjectKey, "S03", AccuracyKey, 0.75)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %s", len(lines), buf.String())
	}
	entry := lines[0]
	if entry["message"] != "fold finished" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry[RunIDKey] != "abc" {
		t.Errorf("run id = %v", entry[RunIDKey])
	}
	if entry[SubjectKey] != "S03" {
		t.Errorf("subject = %v", entry[SubjectKey])
	}
	if entry[AccuracyKey] != 0.75 {
		t.Errorf("accuracy = %v", entry[AccuracyKey])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp")
	}
}

func TestZerologLogger_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, FormatJSON)

	err := errors.Wrap(errors.NewColumnError("label", "required column is missing", []string{"subject"}), "loading table")
	logger.Error("run failed", err, PathKey, "features_raw.csv")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if !strings.Contains(entry[ErrorKey].(string), "required column is missing") {
		t.Errorf("error = %v", entry[ErrorKey])
	}
	if _, ok := entry[StacktraceKey]; !ok {
		t.Error("expected stack trace")
	}
	detail, ok := entry[ErrorDetailKey].(map[string]interface{})
	if !ok {
		t.Fatalf("expected structured error detail, got %v", entry[ErrorDetailKey])
	}
	if detail["column"] != "label" || detail["type"] != "ColumnError" {
		t.Errorf("unexpected detail %v", detail)
	}
	if entry[PathKey] != "features_raw.csv" {
		t.Errorf("path = %v", entry[PathKey])
	}
}

func TestZerologLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo, FormatConsole)

	logger.Info("wrote report", PathKey, "loso_report.txt")

	out := buf.String()
	if !strings.Contains(out, "wrote report") || !strings.Contains(out, "loso_report.txt") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestZerologLogger_Enabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelWarn, FormatJSON)
	ctx := context.Background()

	tests := []struct {
		level Level
		want  bool
	}{
		{LevelDebug, false},
		{LevelInfo, false},
		{LevelWarn, true},
		{LevelError, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := logger.Enabled(ctx, tt.level); got != tt.want {
				t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWarningHandler(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	prev := errors.SetWarningHandler(WarningHandler(testLogger))
	defer errors.SetWarningHandler(prev)

	errors.Warn(errors.NewUndefinedMetricWarning("Precision", "no predicted samples", 0))

	if !testLogger.ContainsMessage("'Precision' is ill-defined") {
		t.Error("warning was not routed to the logger")
	}
	if !testLogger.ContainsField("level", "WARN") {
		t.Error("warning should be logged at WARN level")
	}
}
