// Package model defines the estimator interfaces shared by losocv models and
// the fitted-state bookkeeping they embed.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier combines interfaces for classification models.
type Classifier interface {
	Fitter
	Predictor
	ProbaPredictor

	// Classes returns the sorted unique classes seen during fitting.
	Classes() []int
}

// WeightedFitter is implemented by models that accept per-sample weights.
type WeightedFitter interface {
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// LabelClassifier is a classifier trained and queried with integer labels.
type LabelClassifier interface {
	FitLabels(X mat.Matrix, y []int) error
	PredictLabels(X mat.Matrix) ([]int, error)
}
