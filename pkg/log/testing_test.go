package log

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationEvaluate)
	testLogger.Warn("warning message", SuggestionKey, "check subject column")
	testLogger.Error("error message", fmt.Errorf("test error"), FoldKey, 2)

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}

	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) { // JSON unmarshaling converts numbers to float64
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrorKey, "test error") {
		t.Error("Expected leading error to be logged under the error key")
	}
	if !testLogger.ContainsField(FoldKey, 2.0) {
		t.Error("Expected fields after the error to be logged")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		RunIDKey, "run-1",
		NormKey, "global",
	)
	contextLogger.Info("fold finished", FoldKey, 1, SubjectKey, "S01")

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}

	expectedFields := map[string]interface{}{
		RunIDKey:   "run-1",
		NormKey:    "global",
		FoldKey:    1.0,
		SubjectKey: "S01",
		"level":    "INFO",
	}
	for key, want := range expectedFields {
		if got, ok := entries[0][key]; !ok {
			t.Errorf("Expected field %s not found", key)
		} else if got != want {
			t.Errorf("Field %s: expected %v, got %v", key, want, got)
		}
	}
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) {
		t.Error("Logger should be enabled for Info level")
	}
	if !testLogger.Enabled(ctx, LevelError) {
		t.Error("Logger should be enabled for Error level")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsMessage("this should appear") {
		t.Error("Info message should appear when level is Info")
	}
}

func TestTestLoggerStacktrace(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelError)

	testLogger.Error("load failed", errors.NewColumnError("label", "required column is missing", nil))

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if _, ok := entries[0][StacktraceKey]; !ok {
		t.Error("Expected stack trace for an error created through pkg/errors")
	}
}

func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("report").Info("named logger message")

	lines := buffer.String()
	for _, want := range []string{"provider test message", "named logger message", `"ml.component":"report"`} {
		if !strings.Contains(lines, want) {
			t.Errorf("%s not found in %s", want, lines)
		}
	}
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	const goroutines, perGoroutine = 4, 5
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := testLogger.With("worker", id)
			for j := 0; j < perGoroutine; j++ {
				l.Info(fmt.Sprintf("worker %d message %d", id, j))
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != goroutines*perGoroutine {
		t.Errorf("Expected %d log entries, got %d", goroutines*perGoroutine, len(entries))
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop().With(RunIDKey, "x")
	l.Info("ignored")
	if l.Enabled(context.Background(), LevelError) {
		t.Error("NopLogger must report every level disabled")
	}
}

func BenchmarkLoggingWithContext(b *testing.B) {
	testLogger, _ := NewTestLogger(LevelInfo)
	contextLogger := testLogger.With(RunIDKey, "bench", NormKey, "global")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		contextLogger.Info("fold finished",
			FoldKey, i,
			AccuracyKey, 0.5,
		)
	}
}
