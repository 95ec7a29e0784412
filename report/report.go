// Package report writes the outputs of an evaluation run: the per-subject
// results table, the aggregate text report and the confusion-matrix heat map.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/losocv/dataset"
	"github.com/YuminosukeSato/losocv/evaluation"
	"github.com/YuminosukeSato/losocv/metrics"
	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// Output file names, written into the output directory on every run.
const (
	ResultsFile   = "loso_results.csv"
	ReportFile    = "loso_report.txt"
	ConfusionFile = "loso_confusion_matrix.png"
)

// Digits is the precision of the classification report.
const Digits = 4

// Meta describes the run in the text report header.
type Meta struct {
	Input       string
	Norm        string
	Balanced    bool
	NEstimators int
	RandomState int64
	Rows        int
	Subjects    int
	Features    int
	RunID       string
}

// MetaFor fills Meta from the run configuration and the table.
func MetaFor(cfg evaluation.Config, table *dataset.FeatureTable, input string) Meta {
	return Meta{
		Input:       input,
		Norm:        cfg.Norm.String(),
		Balanced:    cfg.Balanced,
		NEstimators: cfg.NEstimators,
		RandomState: cfg.RandomState,
		Rows:        table.NRows(),
		Subjects:    len(table.Subjects()),
		Features:    table.NFeatures(),
	}
}

// Paths lists the files written by WriteAll.
type Paths struct {
	Results   string
	Report    string
	Confusion string
}

// WriteAll writes the three output files into dir, replacing existing ones.
func WriteAll(dir string, res *evaluation.Result, meta Meta) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, errors.Wrapf(err, "creating output directory %s", dir)
	}
	p := Paths{
		Results:   filepath.Join(dir, ResultsFile),
		Report:    filepath.Join(dir, ReportFile),
		Confusion: filepath.Join(dir, ConfusionFile),
	}
	if err := WriteResultsCSV(p.Results, res.Folds); err != nil {
		return Paths{}, err
	}
	if err := WriteTextReport(p.Report, res, meta); err != nil {
		return Paths{}, err
	}
	if err := RenderConfusionMatrix(p.Confusion, res.Confusion); err != nil {
		return Paths{}, err
	}
	return p, nil
}

// ResultsFrame builds the per-subject table in fold order.
func ResultsFrame(folds []evaluation.FoldResult) dataframe.DataFrame {
	subjects := make([]string, len(folds))
	nTest := make([]int, len(folds))
	acc := make([]float64, len(folds))
	f1 := make([]float64, len(folds))
	for i, f := range folds {
		subjects[i] = f.Subject
		nTest[i] = f.NTest
		acc[i] = f.Accuracy
		f1[i] = f.F1Macro
	}
	return dataframe.New(
		series.New(subjects, series.String, "subject"),
		series.New(nTest, series.Int, "n_test_samples"),
		series.New(acc, series.Float, "accuracy"),
		series.New(f1, series.Float, "f1_macro"),
	)
}

// WriteResultsCSV writes subject, n_test_samples, accuracy and f1_macro,
// one row per fold.
func WriteResultsCSV(path string, folds []evaluation.FoldResult) error {
	df := ResultsFrame(folds)
	if df.Err != nil {
		return errors.Wrap(df.Err, "building results table")
	}
	return writeFile(path, func(w io.Writer) error {
		return df.WriteCSV(w)
	})
}

// WriteTextReport writes the run header, the aggregate classification report
// and the per-subject means.
func WriteTextReport(path string, res *evaluation.Result, meta Meta) error {
	text, err := TextReport(res, meta)
	if err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// TextReport renders the content of loso_report.txt.
func TextReport(res *evaluation.Result, meta Meta) (string, error) {
	cr, err := metrics.ClassificationReport(res.YTrue, res.YPred, dataset.Labels, Digits)
	if err != nil {
		return "", errors.Wrap(err, "classification report")
	}

	balanced := "no"
	if meta.Balanced {
		balanced = "yes"
	}

	var b strings.Builder
	b.WriteString("LOSO evaluation\n")
	if meta.RunID != "" {
		fmt.Fprintf(&b, "run: %s\n", meta.RunID)
	}
	if meta.Input != "" {
		fmt.Fprintf(&b, "input: %s\n", meta.Input)
	}
	fmt.Fprintf(&b, "norm: %s | balanced: %s | n_estimators: %s | random_state: %d\n",
		meta.Norm, balanced, humanize.Comma(int64(meta.NEstimators)), meta.RandomState)
	fmt.Fprintf(&b, "rows: %s | subjects: %s | features: %s\n\n",
		humanize.Comma(int64(meta.Rows)), humanize.Comma(int64(meta.Subjects)), humanize.Comma(int64(meta.Features)))

	b.WriteString("Classification report (aggregate LOSO)\n")
	b.WriteString(cr)
	b.WriteString("\n")
	b.WriteString("\nMean per subject:\n")
	fmt.Fprintf(&b, "%-8s    %.6f\n", "accuracy", res.MeanAccuracy())
	fmt.Fprintf(&b, "%-8s    %.6f\n", "f1_macro", res.MeanF1Macro())
	return b.String(), nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()
	if err := write(f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
