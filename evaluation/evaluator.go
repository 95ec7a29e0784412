package evaluation

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/losocv/core/model"
	"github.com/YuminosukeSato/losocv/dataset"
	"github.com/YuminosukeSato/losocv/metrics"
	"github.com/YuminosukeSato/losocv/pkg/errors"
	"github.com/YuminosukeSato/losocv/pkg/log"
	"github.com/YuminosukeSato/losocv/preprocessing"
	"github.com/YuminosukeSato/losocv/sklearn/ensemble"
	"github.com/YuminosukeSato/losocv/sklearn/model_selection"
)

// FoldResult holds the metrics of one held-out subject.
type FoldResult struct {
	Subject  string
	NTest    int
	Accuracy float64
	F1Macro  float64
}

// Result is the outcome of a complete run. Folds are in subject order and
// YTrue/YPred concatenate the test labels of every fold in that order.
type Result struct {
	Folds     []FoldResult
	Confusion *metrics.ConfusionMatrix
	YTrue     []int
	YPred     []int
}

// MeanAccuracy returns the unweighted mean of the per-subject accuracies.
func (r *Result) MeanAccuracy() float64 {
	return r.meanOf(func(f FoldResult) float64 { return f.Accuracy })
}

// MeanF1Macro returns the unweighted mean of the per-subject macro-F1 scores.
func (r *Result) MeanF1Macro() float64 {
	return r.meanOf(func(f FoldResult) float64 { return f.F1Macro })
}

func (r *Result) meanOf(get func(FoldResult) float64) float64 {
	if len(r.Folds) == 0 {
		return 0
	}
	xs := make([]float64, len(r.Folds))
	for i, f := range r.Folds {
		xs[i] = get(f)
	}
	return stat.Mean(xs, nil)
}

// ClassifierFactory builds a fresh, unfitted classifier for one fold.
type ClassifierFactory func(cfg Config) model.LabelClassifier

// NewForest is the default ClassifierFactory.
func NewForest(cfg Config) model.LabelClassifier {
	return ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(cfg.NEstimators),
		ensemble.WithRandomState(cfg.RandomState),
		ensemble.WithClassWeight(cfg.ClassWeight()),
		ensemble.WithNJobs(cfg.NJobs),
	)
}

// Evaluator runs leave-one-subject-out cross-validation.
type Evaluator struct {
	cfg     Config
	logger  log.Logger
	factory ClassifierFactory
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for progress lines.
func WithLogger(logger log.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithClassifierFactory replaces the random forest.
func WithClassifierFactory(factory ClassifierFactory) Option {
	return func(e *Evaluator) {
		e.factory = factory
	}
}

// NewEvaluator validates cfg and returns an Evaluator.
func NewEvaluator(cfg Config, opts ...Option) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{
		cfg:     cfg,
		logger:  log.Nop(),
		factory: NewForest,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(log.ComponentKey, "evaluation", log.NormKey, cfg.Norm.String())
	return e, nil
}

// Config returns the run configuration.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Run evaluates every fold in subject order. The first failing fold aborts
// the run and no partial result is returned.
func (e *Evaluator) Run(table *dataset.FeatureTable) (*Result, error) {
	if table == nil || table.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "evaluation")
	}
	normalize, err := preprocessing.NewFoldNormalizer(e.cfg.Norm)
	if err != nil {
		return nil, err
	}
	folds, err := model_selection.NewLeaveOneGroupOut().Split(table.Groups)
	if err != nil {
		return nil, err
	}

	if e.cfg.Norm.IsLeaky() {
		e.logger.Warn("test subject statistics are used for normalization, scores are optimistic")
	}
	e.logger.Info("starting evaluation",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, table.NRows(),
		log.FeaturesKey, table.NFeatures(),
		log.SubjectsKey, len(table.Subjects()),
		log.NEstimatorsKey, e.cfg.NEstimators,
		log.BalancedKey, e.cfg.Balanced,
		log.RandomSeedKey, e.cfg.RandomState,
	)

	res := &Result{Confusion: metrics.NewConfusionMatrix(dataset.Labels)}
	for fold := range folds {
		var fr FoldResult
		err := errors.SafeExecute(fmt.Sprintf("fold %d", fold.Index+1), func() error {
			var ferr error
			fr, ferr = e.runFold(table, fold, normalize, res)
			return ferr
		})
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d (subject %s)", fold.Index+1, fold.Subject)
		}
		res.Folds = append(res.Folds, fr)
	}

	e.logger.Info("evaluation finished",
		log.OperationKey, log.OperationEvaluate,
		log.AccuracyKey, res.MeanAccuracy(),
		log.F1MacroKey, res.MeanF1Macro(),
	)
	return res, nil
}

func (e *Evaluator) runFold(table *dataset.FeatureTable, fold model_selection.Fold, normalize preprocessing.FoldNormalizer, res *Result) (FoldResult, error) {
	start := time.Now()
	if err := fold.Validate(table.Groups); err != nil {
		return FoldResult{}, err
	}

	XTrain, yTrain, gTrain := table.Subset(fold.TrainIndices)
	XTest, yTest, gTest := table.Subset(fold.TestIndices)

	XTrainN, XTestN, err := normalize(XTrain, XTest, gTrain, gTest)
	if err != nil {
		return FoldResult{}, err
	}

	clf := e.factory(e.cfg)
	if err := clf.FitLabels(XTrainN, yTrain); err != nil {
		return FoldResult{}, errors.Wrap(err, "training classifier")
	}
	yPred, err := clf.PredictLabels(XTestN)
	if err != nil {
		return FoldResult{}, errors.Wrap(err, "predicting held-out subject")
	}

	fr, cm, err := scoreFold(fold.Subject, yTest, yPred)
	if err != nil {
		return FoldResult{}, err
	}
	if err := res.Confusion.Add(cm); err != nil {
		return FoldResult{}, err
	}
	res.YTrue = append(res.YTrue, yTest...)
	res.YPred = append(res.YPred, yPred...)

	e.logger.Info(fmt.Sprintf("[Fold %02d] Test=%s | acc=%.3f, f1_macro=%.3f", fold.Index+1, fold.Subject, fr.Accuracy, fr.F1Macro),
		log.FoldKey, fold.Index+1,
		log.SubjectKey, fold.Subject,
		log.TrainSamplesKey, len(fold.TrainIndices),
		log.TestSamplesKey, fr.NTest,
		log.AccuracyKey, fr.Accuracy,
		log.F1MacroKey, fr.F1Macro,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return fr, nil
}

func scoreFold(subject string, yTest, yPred []int) (FoldResult, *metrics.ConfusionMatrix, error) {
	acc, err := metrics.AccuracyScore(yTest, yPred)
	if err != nil {
		return FoldResult{}, nil, err
	}
	f1, err := metrics.F1Macro(yTest, yPred)
	if err != nil {
		return FoldResult{}, nil, err
	}
	cm, err := metrics.ComputeConfusionMatrix(yTest, yPred, dataset.Labels)
	if err != nil {
		return FoldResult{}, nil, err
	}
	return FoldResult{Subject: subject, NTest: len(yTest), Accuracy: acc, F1Macro: f1}, cm, nil
}
