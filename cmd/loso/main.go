// Command loso runs leave-one-subject-out cross-validation of a random forest
// over a per-window feature table and writes loso_results.csv,
// loso_report.txt and loso_confusion_matrix.png.
//
// Usage:
//
//	loso -input features_raw.csv -norm global -balanced yes
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/losocv/config"
	"github.com/YuminosukeSato/losocv/dataset"
	"github.com/YuminosukeSato/losocv/evaluation"
	"github.com/YuminosukeSato/losocv/pkg/errors"
	"github.com/YuminosukeSato/losocv/pkg/log"
	"github.com/YuminosukeSato/losocv/report"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.FromArgs(args, stderr)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "loso: %v\n", err)
		return 1
	}

	level, _ := cfg.Level()
	runID := uuid.NewString()
	logger := log.NewZerologLogger(stderr, level, cfg.LogFormat).With(log.RunIDKey, runID)

	prev := errors.SetWarningHandler(log.WarningHandler(logger))
	defer errors.SetWarningHandler(prev)

	if err := evaluate(cfg, runID, logger, stdout); err != nil {
		logger.Error("run failed", err)
		return 1
	}
	return 0
}

func evaluate(cfg config.Config, runID string, logger log.Logger, stdout io.Writer) error {
	start := time.Now()
	runCfg, err := cfg.ToRunConfig()
	if err != nil {
		return err
	}

	logger.Info("loading feature table", log.PhaseKey, log.PhaseLoading, log.PathKey, cfg.Input)
	table, err := dataset.LoadCSV(cfg.Input)
	if err != nil {
		return err
	}

	ev, err := evaluation.NewEvaluator(runCfg, evaluation.WithLogger(logger))
	if err != nil {
		return err
	}
	res, err := ev.Run(table)
	if err != nil {
		return err
	}

	meta := report.MetaFor(runCfg, table, cfg.Input)
	meta.RunID = runID
	paths, err := report.WriteAll(cfg.OutputDir, res, meta)
	if err != nil {
		return err
	}

	text, err := report.TextReport(res, meta)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, text)

	logger.Info("outputs written",
		log.PhaseKey, log.PhaseReporting,
		"output.results", paths.Results,
		"output.report", paths.Report,
		"output.confusion", paths.Confusion,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}
