// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/losocv/core/model"
	"github.com/YuminosukeSato/losocv/pkg/errors"
)

const (
	// impurity at or below this is treated as a pure node
	impurityEpsilon = 1e-12
	noFeature       = -1
)

var (
	_ model.Classifier      = (*DecisionTreeClassifier)(nil)
	_ model.WeightedFitter  = (*DecisionTreeClassifier)(nil)
	_ model.ParameterGetter = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter = (*DecisionTreeClassifier)(nil)
)

// DecisionTreeClassifier is a binary CART tree for classification.
//
// Splits are axis-aligned thresholds placed halfway between consecutive
// distinct feature values; a sample goes left when x <= threshold. Missing
// values (NaN) always go right.
type DecisionTreeClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // -1 for unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int   // features examined per split, 0 for all
	randomState     int64 // seed for feature sampling

	// Fitted attributes
	nodes               []node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
}

type node struct {
	feature   int // noFeature for leaves
	threshold float64
	left      int
	right     int
	depth     int
	nSamples  int
	weight    float64   // weighted number of samples
	impurity  float64
	value     []float64 // class probabilities in classes_ order
}

// Option is a functional option for DecisionTreeClassifier
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split quality measure: "gini" or "entropy".
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth limits the depth of the tree. Zero or negative means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		if depth <= 0 {
			depth = -1
		}
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many randomly drawn features are examined per
// split. Zero examines every feature.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// NewDecisionTreeClassifier creates a new DecisionTreeClassifier.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		randomState:     0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit builds the tree from X and the column vector of labels y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. A nil sampleWeight
// means every sample has weight 1; samples with weight 0 are ignored.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	labels, err := labelsFromMatrix(y)
	if err != nil {
		return err
	}
	return dt.FitWithClasses(X, labels, sampleWeight, uniqueSorted(labels))
}

// FitWithClasses builds the tree with a fixed class list, so probability
// columns line up across trees fitted on different subsets of the same data.
// Every label must appear in classes.
func (dt *DecisionTreeClassifier) FitWithClasses(X mat.Matrix, y []int, sampleWeight []float64, classes []int) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, len(y), 0)
	}
	if sampleWeight != nil && len(sampleWeight) != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, len(sampleWeight), 0)
	}
	if len(classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "classes must not be empty")
	}

	classIndex := make(map[int]int, len(classes))
	for k, c := range classes {
		classIndex[c] = k
	}
	yIdx := make([]int, rows)
	for i, label := range y {
		k, ok := classIndex[label]
		if !ok {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("label %d is not in classes %v", label, classes))
		}
		yIdx[i] = k
	}

	samples := make([]int, 0, rows)
	weights := make([]float64, rows)
	for i := 0; i < rows; i++ {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if w < 0 || math.IsNaN(w) {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("sample weight %v at row %d must be non-negative", w, i))
		}
		weights[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	dt.classes_ = append([]int(nil), classes...)
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = cols

	b := &builder{
		dt:      dt,
		x:       denseView(X),
		yIdx:    yIdx,
		weights: weights,
		rng:     rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState)^0x9e3779b97f4a7c15)),
	}
	dt.nodes = dt.nodes[:0]
	b.build(samples, 0)
	dt.featureImportances_ = dt.computeImportances()

	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

func (dt *DecisionTreeClassifier) validateParams() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	if dt.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", dt.maxFeatures)
	}
	return nil
}

// Predict returns the most probable class of each row as an n x 1 matrix.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	labels, err := dt.PredictLabels(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		out.Set(i, 0, float64(l))
	}
	return out, nil
}

// PredictLabels returns the most probable class of each row. Ties go to the
// class that comes first in Classes().
func (dt *DecisionTreeClassifier) PredictLabels(X mat.Matrix) ([]int, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	row := make([]float64, dt.nFeatures_)
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		labels[i] = dt.classes_[argmax(dt.leafValue(row))]
	}
	return labels, nil
}

// PredictProba returns class probabilities, one column per class in
// Classes() order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.leafValue(row))
	}
	return out, nil
}

// AccumulateProba adds this tree's class probabilities for every row of X
// into acc, which must be rows x len(Classes()).
func (dt *DecisionTreeClassifier) AccumulateProba(X mat.Matrix, acc *mat.Dense) error {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return err
	}
	rows, _ := X.Dims()
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		dst := acc.RawRowView(i)
		for k, p := range dt.leafValue(row) {
			dst[k] += p
		}
	}
	return nil
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, cols)
}

func (dt *DecisionTreeClassifier) leafValue(row []float64) []float64 {
	n := &dt.nodes[0]
	for n.feature != noFeature {
		v := row[n.feature]
		if !math.IsNaN(v) && v <= n.threshold {
			n = &dt.nodes[n.left]
		} else {
			n = &dt.nodes[n.right]
		}
	}
	return n.value
}

// Score returns the mean accuracy on X and y, or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.PredictLabels(X)
	if err != nil {
		return 0
	}
	correct := 0
	for i, p := range pred {
		if float64(p) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}

// Classes returns the class labels in probability column order.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized total impurity decrease
// contributed by each feature. All zeros when the tree is a single leaf.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

func (dt *DecisionTreeClassifier) computeImportances() []float64 {
	imp := make([]float64, dt.nFeatures_)
	for _, n := range dt.nodes {
		if n.feature == noFeature {
			continue
		}
		l, r := dt.nodes[n.left], dt.nodes[n.right]
		imp[n.feature] += n.weight*n.impurity - l.weight*l.impurity - r.weight*r.impurity
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// GetDepth returns the number of edges on the longest root-to-leaf path.
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, n := range dt.nodes {
		if n.depth > depth {
			depth = n.depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	leaves := 0
	for _, n := range dt.nodes {
		if n.feature == noFeature {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				WithMaxDepth(v)(dt)
			case "min_samples_split":
				dt.minSamplesSplit = v
			case "min_samples_leaf":
				dt.minSamplesLeaf = v
			case "max_features":
				dt.maxFeatures = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				dt.randomState = int64(v)
			case int64:
				dt.randomState = v
			default:
				return errors.NewValidationError(key, "must be an integer", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validateParams()
}

// denseView returns X as a *mat.Dense without copying when possible.
func denseView(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

func labelsFromMatrix(y mat.Matrix) ([]int, error) {
	rows, cols := y.Dims()
	if cols != 1 {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, cols, 1)
	}
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || v != math.Trunc(v) {
			return nil, errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("label %v at row %d is not an integer", v, i))
		}
		labels[i] = int(v)
	}
	return labels, nil
}

func uniqueSorted(labels []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

func argmax(values []float64) int {
	best := 0
	for k := 1; k < len(values); k++ {
		if values[k] > values[best] {
			best = k
		}
	}
	return best
}
