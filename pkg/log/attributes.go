// Standard attribute keys.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so log lines from different packages can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "RandomForestClassifier", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "evaluate"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey is the number of rows in the data being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// SubjectsKey is the number of distinct subjects in the table.
	SubjectsKey = "data.subjects"

	// PathKey is an input or output file path.
	PathKey = "data.path"
)

// Cross-validation Context
const (
	// FoldKey is the 1-based fold number.
	FoldKey = "loso.fold"

	// SubjectKey is the held-out subject of a fold.
	SubjectKey = "loso.subject"

	// NormKey is the normalization mode of the run.
	NormKey = "loso.norm"

	// TrainSamplesKey and TestSamplesKey are the fold split sizes.
	TrainSamplesKey = "loso.n_train"
	TestSamplesKey  = "loso.n_test"
)

// Metrics and Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// F1MacroKey records the macro-averaged F1 score.
	F1MacroKey = "metrics.f1_macro"
)

// Error Context
const (
	// ErrorKey holds the error message.
	ErrorKey = "error"

	// ErrorDetailKey holds the structured fields of a typed error.
	ErrorDetailKey = "error.detail"

	// StacktraceKey contains the cockroachdb/errors stack trace.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Configuration
const (
	// RunIDKey correlates every line of one evaluation run.
	RunIDKey = "run.id"

	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// NEstimatorsKey records the forest size.
	NEstimatorsKey = "config.n_estimators"

	// BalancedKey records whether class weighting is enabled.
	BalancedKey = "config.balanced"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationReport    = "report"

	PhaseLoading       = "loading"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseReporting     = "reporting"
)
