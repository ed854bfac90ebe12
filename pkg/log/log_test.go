package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("test error"), "code", "E1")

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField("error", "test error") {
		t.Error("Expected leading error to be captured under 'error'")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(ModelNameKey, "Pipeline", ComponentKey, "test")
	contextLogger.Info("contextual message", OperationKey, OperationPredict)

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0][ModelNameKey] != "Pipeline" || entries[0][OperationKey] != OperationPredict {
		t.Errorf("context fields missing: %v", entries[0])
	}
}

func TestTestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelError) {
		t.Error("Logger should be enabled for Error level")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("hidden")
	if testLogger.ContainsMessage("hidden") {
		t.Error("Debug message should not appear when level is Info")
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo).With(ComponentKey, "GridSearchCV")

	logger.Debug("suppressed")
	logger.Info("Fitting folds", CandidatesKey, 30, FoldsKey, 10, ScoreKey, -0.25)
	logger.Error("fit failed", fmt.Errorf("singular"), FailedFitsKey, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &info); err != nil {
		t.Fatal(err)
	}
	if info["level"] != "info" || info["message"] != "Fitting folds" {
		t.Errorf("unexpected info line: %v", info)
	}
	if info[ComponentKey] != "GridSearchCV" || info[CandidatesKey] != 30.0 {
		t.Errorf("missing fields: %v", info)
	}

	var errLine map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &errLine); err != nil {
		t.Fatal(err)
	}
	if errLine["error"] != "singular" {
		t.Errorf("expected error field, got %v", errLine)
	}

	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
}

func TestZerologProviderWarn(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug)

	p.warn(errors.NewUnknownCategoryWarning("Fuel_Type", []string{"LPG"}))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	w, ok := entry["warning"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected structured warning object, got %v", entry)
	}
	if w["column"] != "Fuel_Type" || w["type"] != "UnknownCategoryWarning" {
		t.Errorf("unexpected warning object: %v", w)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestErrFmtHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))

	err := errors.Wrap(errors.NewValidationError("Year", "column not found", nil), "train split")
	logger.Error("training failed", ErrAttr(err))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry[ErrKindAttrKey] != "validation" {
		t.Errorf("error_kind = %v, want validation", entry[ErrKindAttrKey])
	}
	if st, _ := entry[StacktraceAttrKey].(string); st == "" {
		t.Error("stack trace missing")
	}

	buf.Reset()
	logger.Info("no error here")
	if strings.Contains(buf.String(), ErrKindAttrKey) {
		t.Errorf("plain record was decorated: %s", buf.String())
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.NewNotFittedError("Pipeline", "Predict"), "not_fitted"},
		{errors.NewDimensionError("Predict", 2, 3, 1), "dimension"},
		{errors.NewValueError("KFold.Split", "too few rows"), "value"},
		{errors.Wrap(errors.ErrAllFitsFailed, "search"), "all_fits_failed"},
		{errors.New("plain"), "unknown"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
