package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// AccuracyScore は正解ラベルと予測ラベルが一致する割合を計算する
func AccuracyScore(yTrue, yPred []int) (float64, error) {
	if err := checkLabels("AccuracyScore", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

func checkLabels(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty label sequence")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// ConfusionMatrix は混同行列。行が正解ラベル、列が予測ラベルで、
// どちらも Labels の順に並ぶ。
type ConfusionMatrix struct {
	labels []int
	index  map[int]int
	counts *mat.Dense
}

// NewConfusionMatrix はゼロで初期化された混同行列を作成する
func NewConfusionMatrix(labels []int) *ConfusionMatrix {
	k := len(labels)
	cm := &ConfusionMatrix{
		labels: append([]int(nil), labels...),
		index:  make(map[int]int, k),
	}
	if k > 0 {
		cm.counts = mat.NewDense(k, k, nil)
	}
	for i, l := range labels {
		cm.index[l] = i
	}
	return cm
}

// ComputeConfusionMatrix は yTrue と yPred から混同行列を計算する。
// labels に含まれないラベルのペアは数えない。
func ComputeConfusionMatrix(yTrue, yPred, labels []int) (*ConfusionMatrix, error) {
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError("ComputeConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ComputeConfusionMatrix", "labels must not be empty")
	}
	cm := NewConfusionMatrix(labels)
	for i := range yTrue {
		r, okT := cm.index[yTrue[i]]
		c, okP := cm.index[yPred[i]]
		if okT && okP {
			cm.counts.Set(r, c, cm.counts.At(r, c)+1)
		}
	}
	return cm, nil
}

// Add accumulates other into cm. Both matrices must share the same labels.
func (cm *ConfusionMatrix) Add(other *ConfusionMatrix) error {
	if len(other.labels) != len(cm.labels) {
		return errors.NewDimensionError("ConfusionMatrix.Add", len(cm.labels), len(other.labels), 0)
	}
	for i, l := range cm.labels {
		if other.labels[i] != l {
			return errors.NewValueError("ConfusionMatrix.Add", fmt.Sprintf("label order differs: %v vs %v", cm.labels, other.labels))
		}
	}
	if cm.counts != nil {
		cm.counts.Add(cm.counts, other.counts)
	}
	return nil
}

// At returns the count of samples with true label index i predicted as j.
func (cm *ConfusionMatrix) At(i, j int) int {
	return int(cm.counts.At(i, j))
}

// Total returns the number of samples counted.
func (cm *ConfusionMatrix) Total() int {
	if cm.counts == nil {
		return 0
	}
	return int(mat.Sum(cm.counts))
}

// Labels returns the row and column labels.
func (cm *ConfusionMatrix) Labels() []int {
	return append([]int(nil), cm.labels...)
}

// Matrix returns a copy of the counts.
func (cm *ConfusionMatrix) Matrix() *mat.Dense {
	if cm.counts == nil {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(cm.counts)
}

func (cm *ConfusionMatrix) String() string {
	var b strings.Builder
	k := len(cm.labels)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(cm.At(i, j)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ClassScores は PrecisionRecallFScoreSupport の結果。各スライスは labels の順。
type ClassScores struct {
	Labels    []int
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int

	tp, fp, fn []float64
}

const (
	warnPrecision = 1 << iota
	warnRecall
	warnFScore
)

// PrecisionRecallFScoreSupport はラベルごとの適合率・再現率・F1スコア・サポートを計算する。
// 分母が0になる指標は0とし、UndefinedMetricWarning を発行する。
func PrecisionRecallFScoreSupport(yTrue, yPred, labels []int) (*ClassScores, error) {
	return precisionRecallFScore("PrecisionRecallFScoreSupport", yTrue, yPred, labels, warnPrecision|warnRecall|warnFScore)
}

func precisionRecallFScore(op string, yTrue, yPred, labels []int, warnFor int) (*ClassScores, error) {
	if err := checkLabels(op, yTrue, yPred); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError(op, "labels must not be empty")
	}

	k := len(labels)
	index := make(map[int]int, k)
	for i, l := range labels {
		index[l] = i
	}
	s := &ClassScores{
		Labels:    append([]int(nil), labels...),
		Precision: make([]float64, k),
		Recall:    make([]float64, k),
		F1:        make([]float64, k),
		Support:   make([]int, k),
		tp:        make([]float64, k),
		fp:        make([]float64, k),
		fn:        make([]float64, k),
	}
	for i := range yTrue {
		t, okT := index[yTrue[i]]
		p, okP := index[yPred[i]]
		if okT {
			s.Support[t]++
		}
		switch {
		case okT && okP && t == p:
			s.tp[t]++
		default:
			if okP {
				s.fp[p]++
			}
			if okT {
				s.fn[t]++
			}
		}
	}

	var noPred, noTrue, noEither []string
	for c := 0; c < k; c++ {
		tp, fp, fn := s.tp[c], s.fp[c], s.fn[c]
		name := strconv.Itoa(labels[c])
		if tp+fp > 0 {
			s.Precision[c] = tp / (tp + fp)
		} else {
			noPred = append(noPred, name)
		}
		if tp+fn > 0 {
			s.Recall[c] = tp / (tp + fn)
		} else {
			noTrue = append(noTrue, name)
		}
		if den := 2*tp + fp + fn; den > 0 {
			s.F1[c] = 2 * tp / den
		} else {
			noEither = append(noEither, name)
		}
	}

	if warnFor&warnPrecision != 0 && len(noPred) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples in labels "+strings.Join(noPred, ", "), 0))
	}
	if warnFor&warnRecall != 0 && len(noTrue) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples in labels "+strings.Join(noTrue, ", "), 0))
	}
	if warnFor&warnFScore != 0 && len(noEither) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f-score", "no true nor predicted samples in labels "+strings.Join(noEither, ", "), 0))
	}
	return s, nil
}

// F1Macro は yTrue と yPred に現れるラベルごとのF1スコアの単純平均を計算する
func F1Macro(yTrue, yPred []int) (float64, error) {
	if err := checkLabels("F1Macro", yTrue, yPred); err != nil {
		return 0, err
	}
	labels := UniqueLabels(yTrue, yPred)
	s, err := precisionRecallFScore("F1Macro", yTrue, yPred, labels, warnFScore)
	if err != nil {
		return 0, err
	}
	return mean(s.F1), nil
}

// UniqueLabels returns the sorted union of the labels in the given sequences.
func UniqueLabels(ys ...[]int) []int {
	seen := make(map[int]struct{})
	for _, y := range ys {
		for _, l := range y {
			seen[l] = struct{}{}
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ClassificationReport は scikit-learn の classification_report と同じ書式の
// テキストレポートを作成する。labels が観測されたラベルをすべて含むときは
// micro avg の代わりに accuracy 行を出力する。
func ClassificationReport(yTrue, yPred, labels []int, digits int) (string, error) {
	if digits < 0 {
		return "", errors.NewValidationError("digits", "must be non-negative", digits)
	}
	s, err := PrecisionRecallFScoreSupport(yTrue, yPred, labels)
	if err != nil {
		return "", err
	}

	names := make([]string, len(labels))
	width := len("weighted avg")
	for i, l := range labels {
		names[i] = strconv.Itoa(l)
		width = max(width, len(names[i]))
	}
	width = max(width, digits)

	var b strings.Builder
	fmt.Fprintf(&b, "%*s ", width, "")
	for _, h := range []string{"precision", "recall", "f1-score", "support"} {
		fmt.Fprintf(&b, " %9s", h)
	}
	b.WriteString("\n\n")

	row := func(name string, p, r, f float64, support int) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n", width, name, digits, p, digits, r, digits, f, support)
	}
	for i := range labels {
		row(names[i], s.Precision[i], s.Recall[i], s.F1[i], s.Support[i])
	}
	b.WriteByte('\n')

	totalSupport := 0
	for _, n := range s.Support {
		totalSupport += n
	}

	var tp, fp, fn float64
	for c := range labels {
		tp += s.tp[c]
		fp += s.fp[c]
		fn += s.fn[c]
	}
	microF := errors.SafeDivide(2*tp, 2*tp+fp+fn)
	if coversAll(labels, yTrue, yPred) {
		fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", digits, microF, totalSupport)
	} else {
		row("micro avg", errors.SafeDivide(tp, tp+fp), errors.SafeDivide(tp, tp+fn), microF, totalSupport)
	}

	row("macro avg", mean(s.Precision), mean(s.Recall), mean(s.F1), totalSupport)

	var wp, wr, wf float64
	for c, n := range s.Support {
		w := float64(n)
		wp += w * s.Precision[c]
		wr += w * s.Recall[c]
		wf += w * s.F1[c]
	}
	ts := float64(totalSupport)
	row("weighted avg", errors.SafeDivide(wp, ts), errors.SafeDivide(wr, ts), errors.SafeDivide(wf, ts), totalSupport)

	return b.String(), nil
}

func coversAll(labels []int, ys ...[]int) bool {
	set := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	for _, l := range UniqueLabels(ys...) {
		if _, ok := set[l]; !ok {
			return false
		}
	}
	return true
}
