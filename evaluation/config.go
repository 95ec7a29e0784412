// Package evaluation runs leave-one-subject-out cross-validation of a random
// forest over a feature table.
package evaluation

import (
	"fmt"

	"github.com/YuminosukeSato/losocv/preprocessing"
	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// Config holds the options of one evaluation run. It is built once and never
// modified while folds run.
type Config struct {
	Norm        preprocessing.NormMode
	Balanced    bool
	NEstimators int
	RandomState int64
	NJobs       int // goroutines per forest, 0 for all CPUs
}

// DefaultConfig returns the command-line defaults.
func DefaultConfig() Config {
	return Config{
		Norm:        preprocessing.NormGlobal,
		Balanced:    true,
		NEstimators: 300,
		RandomState: 42,
	}
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	if _, err := preprocessing.NewFoldNormalizer(c.Norm); err != nil {
		return err
	}
	if c.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be a positive integer", c.NEstimators)
	}
	return nil
}

// ClassWeight returns the forest class_weight for the Balanced flag.
func (c Config) ClassWeight() string {
	if c.Balanced {
		return "balanced"
	}
	return "none"
}

func (c Config) String() string {
	return fmt.Sprintf("norm=%s balanced=%t n_estimators=%d random_state=%d", c.Norm, c.Balanced, c.NEstimators, c.RandomState)
}
