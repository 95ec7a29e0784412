// Package ensemble implements a random forest classifier on top of the CART
// trees in sklearn/tree.
package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/losocv/core/model"
	"github.com/YuminosukeSato/losocv/core/parallel"
	"github.com/YuminosukeSato/losocv/pkg/errors"
	"github.com/YuminosukeSato/losocv/sklearn/tree"
)

var (
	_ model.Classifier      = (*RandomForestClassifier)(nil)
	_ model.LabelClassifier = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier averages the class probabilities of bootstrapped
// decision trees. Compatible with scikit-learn's RandomForestClassifier.
type RandomForestClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	nEstimators    int
	criterion      string // "gini" or "entropy"
	maxDepth       int    // -1 for unlimited
	minSamplesLeaf int
	maxFeatures    string // "sqrt", "log2" or "all"
	bootstrap      bool
	classWeight    string // "balanced" or "none"
	randomState    int64
	nJobs          int // 0 for all CPUs

	// Fitted attributes
	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
	nClasses_   int
	nFeatures_  int
}

// RandomForestOption is a functional option for RandomForestClassifier
type RandomForestOption func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithClassWeight sets class weighting: "balanced" or "none".
func WithClassWeight(weight string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.classWeight = weight
	}
}

// WithRandomState seeds bootstrap sampling and feature sampling.
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithMaxFeatures sets the features examined per split: "sqrt", "log2" or "all".
func WithMaxFeatures(mode string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = mode
	}
}

// WithForestCriterion sets the split criterion of every tree.
func WithForestCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithForestMaxDepth limits the depth of every tree. Zero or negative means unlimited.
func WithForestMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		if depth <= 0 {
			depth = -1
		}
		rf.maxDepth = depth
	}
}

// WithForestMinSamplesLeaf sets the minimum number of samples per leaf.
func WithForestMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithBootstrap toggles bootstrap sampling. Without it every tree sees every row.
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithNJobs sets the number of goroutines used to build trees and predict.
// Zero or negative uses every CPU.
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// NewRandomForestClassifier creates a new RandomForestClassifier.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:          model.NewStateManager(),
		nEstimators:    100,
		criterion:      "gini",
		maxDepth:       -1,
		minSamplesLeaf: 1,
		maxFeatures:    "sqrt",
		bootstrap:      true,
		classWeight:    "none",
		randomState:    0,
		nJobs:          0,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) validateParams() error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if rf.classWeight != "balanced" && rf.classWeight != "none" {
		return errors.NewValidationError("class_weight", "must be 'balanced' or 'none'", rf.classWeight)
	}
	switch rf.maxFeatures {
	case "sqrt", "log2", "all":
	default:
		return errors.NewValidationError("max_features", "must be 'sqrt', 'log2' or 'all'", rf.maxFeatures)
	}
	return nil
}

// Fit trains the forest on X and the column vector of labels y.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	rows, cols := y.Dims()
	if cols != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, cols, 1)
	}
	labels := make([]int, rows)
	for i := range labels {
		v := y.At(i, 0)
		if math.IsNaN(v) || v != math.Trunc(v) {
			return errors.NewValueError("RandomForestClassifier.Fit", fmt.Sprintf("label %v at row %d is not an integer", v, i))
		}
		labels[i] = int(v)
	}
	return rf.FitLabels(X, labels)
}

// FitLabels trains the forest on X and integer labels y.
func (rf *RandomForestClassifier) FitLabels(X mat.Matrix, y []int) error {
	if err := rf.validateParams(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, len(y), 0)
	}

	classes, counts := classCounts(y)
	sampleWeight := rf.expandClassWeight(y, classes, counts)
	maxFeatures := resolveMaxFeatures(rf.maxFeatures, cols)

	// Seeds are drawn up front so the forest does not depend on scheduling.
	master := rand.New(rand.NewPCG(uint64(rf.randomState), uint64(rf.randomState)))
	seeds := make([]int64, rf.nEstimators)
	for t := range seeds {
		seeds[t] = int64(master.Uint64() >> 1)
	}

	Xd := denseView(X)
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.ParallelizeN(rf.nEstimators, rf.nJobs, func(start, end int) {
		for t := start; t < end; t++ {
			est := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.criterion),
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(maxFeatures),
				tree.WithRandomState(seeds[t]),
			)
			w := sampleWeight
			if rf.bootstrap {
				w = bootstrapWeights(sampleWeight, seeds[t])
			}
			errs[t] = errors.SafeExecute(fmt.Sprintf("tree %d", t), func() error {
				return est.FitWithClasses(Xd, y, w, classes)
			})
			estimators[t] = est
		}
	})
	for t, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "fitting tree %d", t)
		}
	}

	rf.estimators_ = estimators
	rf.classes_ = classes
	rf.nClasses_ = len(classes)
	rf.nFeatures_ = cols
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// expandClassWeight returns per-sample weights. "balanced" gives class c the
// weight n_samples / (n_classes * count_c).
func (rf *RandomForestClassifier) expandClassWeight(y []int, classes []int, counts map[int]int) []float64 {
	w := make([]float64, len(y))
	if rf.classWeight != "balanced" {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	n := float64(len(y))
	k := float64(len(classes))
	for i, label := range y {
		w[i] = n / (k * float64(counts[label]))
	}
	return w
}

// ClassWeights returns the weight given to each class of y under the
// forest's class_weight setting.
func (rf *RandomForestClassifier) ClassWeights(y []int) map[int]float64 {
	classes, counts := classCounts(y)
	w := rf.expandClassWeight(y, classes, counts)
	out := make(map[int]float64, len(classes))
	for i, label := range y {
		out[label] = w[i]
	}
	return out
}

// bootstrapWeights draws len(base) rows with replacement and multiplies each
// row's base weight by the number of times it was drawn.
func bootstrapWeights(base []float64, seed int64) []float64 {
	n := len(base)
	r := rand.New(rand.NewPCG(uint64(seed), 0))
	drawn := make([]float64, n)
	for k := 0; k < n; k++ {
		drawn[r.IntN(n)]++
	}
	for i := range drawn {
		drawn[i] *= base[i]
	}
	return drawn
}

func resolveMaxFeatures(mode string, nFeatures int) int {
	var k int
	switch mode {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

func classCounts(y []int) ([]int, map[int]int) {
	counts := make(map[int]int)
	for _, label := range y {
		counts[label]++
	}
	classes := make([]int, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, counts
}

// PredictProba returns the mean class probabilities of the trees, one column
// per class in Classes() order.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return rf.predictProba(X, "PredictProba")
}

func (rf *RandomForestClassifier) predictProba(X mat.Matrix, method string) (*mat.Dense, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", method); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier."+method, cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return &mat.Dense{}, nil
	}

	Xd := denseView(X)
	acc := mat.NewDense(rows, rf.nClasses_, nil)
	var (
		mu       sync.Mutex
		firstErr error
	)
	parallel.ParallelizeN(rows, rf.nJobs, func(start, end int) {
		xs := Xd.Slice(start, end, 0, cols)
		as := acc.Slice(start, end, 0, rf.nClasses_).(*mat.Dense)
		for _, est := range rf.estimators_ {
			if err := est.AccumulateProba(xs, as); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	acc.Scale(1/float64(len(rf.estimators_)), acc)
	return acc, nil
}

// Predict returns the predicted class of each row as an n x 1 matrix.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	labels, err := rf.PredictLabels(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		out.Set(i, 0, float64(l))
	}
	return out, nil
}

// PredictLabels returns the class with the highest mean probability for each
// row. Ties go to the class that comes first in Classes().
func (rf *RandomForestClassifier) PredictLabels(X mat.Matrix) ([]int, error) {
	proba, err := rf.predictProba(X, "Predict")
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := proba.RawRowView(i)
		best := 0
		for k := 1; k < len(row); k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		labels[i] = rf.classes_[best]
	}
	return labels, nil
}

// Classes returns the class labels seen during fitting.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators_
}

// GetFeatureImportances returns the mean feature importance over the trees.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	imp := make([]float64, rf.nFeatures_)
	if len(rf.estimators_) == 0 {
		return imp
	}
	for _, est := range rf.estimators_ {
		for j, v := range est.GetFeatureImportances() {
			imp[j] += v
		}
	}
	for j := range imp {
		imp[j] /= float64(len(rf.estimators_))
	}
	return imp
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.nEstimators,
		"criterion":        rf.criterion,
		"max_depth":        rf.maxDepth,
		"min_samples_leaf": rf.minSamplesLeaf,
		"max_features":     rf.maxFeatures,
		"bootstrap":        rf.bootstrap,
		"class_weight":     rf.classWeight,
		"random_state":     rf.randomState,
		"n_jobs":           rf.nJobs,
	}
}

func denseView(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}
