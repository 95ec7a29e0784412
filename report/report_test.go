package report

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/YuminosukeSato/losocv/dataset"
	"github.com/YuminosukeSato/losocv/evaluation"
	"github.com/YuminosukeSato/losocv/metrics"
	"github.com/YuminosukeSato/losocv/pkg/errors"
)

func sampleResult(t *testing.T) *evaluation.Result {
	t.Helper()
	yTrue := []int{1, 2, 3, 1, 1, 2, 3}
	yPred := []int{1, 2, 2, 1, 2, 2, 3}
	cm, err := metrics.ComputeConfusionMatrix(yTrue, yPred, dataset.Labels)
	if err != nil {
		t.Fatal(err)
	}
	return &evaluation.Result{
		Folds: []evaluation.FoldResult{
			{Subject: "1", NTest: 3, Accuracy: 2.0 / 3.0, F1Macro: 0.5555555555555555},
			{Subject: "10", NTest: 4, Accuracy: 0.75, F1Macro: 0.7777777777777777},
		},
		Confusion: cm,
		YTrue:     yTrue,
		YPred:     yPred,
	}
}

func TestWriteResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), ResultsFile)
	if err := WriteResultsCSV(path, sampleResult(t).Folds); err != nil {
		t.Fatalf("WriteResultsCSV() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), data)
	}
	if lines[0] != "subject,n_test_samples,accuracy,f1_macro" {
		t.Errorf("header = %q", lines[0])
	}

	cells := strings.Split(lines[2], ",")
	if cells[0] != "10" || cells[1] != "4" {
		t.Errorf("row = %q", lines[2])
	}
	acc, err := strconv.ParseFloat(cells[2], 64)
	if err != nil || math.Abs(acc-0.75) > 1e-6 {
		t.Errorf("accuracy cell = %q", cells[2])
	}
}

func TestTextReport(t *testing.T) {
	meta := Meta{
		Input:       "features_raw.csv",
		Norm:        "global",
		Balanced:    true,
		NEstimators: 300,
		RandomState: 42,
		Rows:        12345,
		Subjects:    2,
		Features:    40,
		RunID:       "run-1",
	}
	text, err := TextReport(sampleResult(t), meta)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"run: run-1",
		"norm: global | balanced: yes | n_estimators: 300 | random_state: 42",
		"rows: 12,345 | subjects: 2 | features: 40",
		"Classification report (aggregate LOSO)",
		"precision    recall  f1-score   support",
		"    accuracy",
		"weighted avg",
		"accuracy    0.708333",
		"f1_macro    0.666667",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report does not contain %q:\n%s", want, text)
		}
	}
}

func TestConfusionGrid(t *testing.T) {
	cm, err := metrics.ComputeConfusionMatrix([]int{1, 1, 3}, []int{1, 2, 3}, dataset.Labels)
	if err != nil {
		t.Fatal(err)
	}
	g := confusionGrid{m: cm.Matrix()}

	c, r := g.Dims()
	if c != 3 || r != 3 {
		t.Fatalf("Dims() = (%d, %d)", c, r)
	}
	// true label 1 is the top row
	if g.Z(0, 2) != 1 || g.Z(1, 2) != 1 || g.Z(2, 0) != 1 {
		t.Errorf("grid rows are not flipped: %v", cm.Matrix().RawMatrix().Data)
	}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := sampleResult(t)

	// existing outputs are replaced
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ReportFile), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := WriteAll(dir, res, Meta{Norm: "none"})
	if err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	report, err := os.ReadFile(paths.Report)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(report), "stale") {
		t.Error("report was not overwritten")
	}

	img, err := os.ReadFile(paths.Confusion)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("confusion matrix is not a PNG: %v", err)
	}
	if cfg.Width <= cfg.Height {
		t.Errorf("image is %dx%d, want landscape", cfg.Width, cfg.Height)
	}

	if _, err := os.Stat(paths.Results); err != nil {
		t.Error(err)
	}
}

func TestRenderConfusionMatrix_Empty(t *testing.T) {
	cm := metrics.NewConfusionMatrix(dataset.Labels)
	path := filepath.Join(t.TempDir(), ConfusionFile)
	if err := RenderConfusionMatrix(path, cm); err != nil {
		t.Fatalf("all-zero matrix should still render: %v", err)
	}

	var ve *errors.ValueError
	if _, err := ConfusionPlot(metrics.NewConfusionMatrix(nil)); !errors.As(err, &ve) {
		t.Errorf("expected ValueError for a matrix without labels, got %v", err)
	}
}
