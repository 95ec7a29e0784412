package metrics

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

const tol = 1e-9

func TestAccuracyScore(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []int
		yPred   []int
		want    float64
		wantErr bool
	}{
		{name: "perfect", yTrue: []int{1, 2, 3}, yPred: []int{1, 2, 3}, want: 1},
		{name: "half", yTrue: []int{1, 2, 3, 3}, yPred: []int{1, 1, 3, 1}, want: 0.5},
		{name: "none", yTrue: []int{1, 1}, yPred: []int{2, 3}, want: 0},
		{name: "empty", yTrue: []int{}, yPred: []int{}, wantErr: true},
		{name: "length mismatch", yTrue: []int{1, 2}, yPred: []int{1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AccuracyScore(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AccuracyScore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tol {
				t.Errorf("AccuracyScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfusionMatrix(t *testing.T) {
	labels := []int{1, 2, 3}
	cm, err := ComputeConfusionMatrix([]int{1, 1, 2, 3, 3}, []int{1, 2, 2, 3, 1}, labels)
	if err != nil {
		t.Fatal(err)
	}

	want := [3][3]int{
		{1, 1, 0},
		{0, 1, 0},
		{1, 0, 1},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if cm.At(i, j) != want[i][j] {
				t.Errorf("At(%d, %d) = %d, want %d", i, j, cm.At(i, j), want[i][j])
			}
		}
	}
	if cm.Total() != 5 {
		t.Errorf("Total() = %d, want 5", cm.Total())
	}

	other, err := ComputeConfusionMatrix([]int{2, 2}, []int{2, 3}, labels)
	if err != nil {
		t.Fatal(err)
	}
	total := NewConfusionMatrix(labels)
	if err := total.Add(cm); err != nil {
		t.Fatal(err)
	}
	if err := total.Add(other); err != nil {
		t.Fatal(err)
	}
	if total.Total() != 7 || total.At(1, 1) != 2 || total.At(1, 2) != 1 {
		t.Errorf("accumulated matrix:\n%s", total)
	}

	if err := total.Add(NewConfusionMatrix([]int{1, 2})); err == nil {
		t.Error("expected error adding matrices with different labels")
	}
	if err := total.Add(NewConfusionMatrix([]int{3, 2, 1})); err == nil {
		t.Error("expected error adding matrices with different label order")
	}
}

func TestConfusionMatrix_IgnoresUnknownLabels(t *testing.T) {
	cm, err := ComputeConfusionMatrix([]int{1, 4, 2}, []int{1, 1, 5}, []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if cm.Total() != 1 {
		t.Errorf("Total() = %d, want 1", cm.Total())
	}
}

func TestPrecisionRecallFScoreSupport(t *testing.T) {
	prev := errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(prev)

	s, err := PrecisionRecallFScoreSupport([]int{1, 1, 2, 3}, []int{1, 2, 2, 3}, []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		got  []float64
		want []float64
	}{
		{"precision", s.Precision, []float64{1, 0.5, 1}},
		{"recall", s.Recall, []float64{0.5, 1, 1}},
		{"f1", s.F1, []float64{2.0 / 3.0, 2.0 / 3.0, 1}},
	}
	for _, c := range checks {
		for i := range c.want {
			if math.Abs(c.got[i]-c.want[i]) > tol {
				t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
				break
			}
		}
	}
	if !reflect.DeepEqual(s.Support, []int{2, 1, 1}) {
		t.Errorf("Support = %v", s.Support)
	}
}

func TestPrecisionRecallFScoreSupport_ZeroDivision(t *testing.T) {
	var warnings []*errors.UndefinedMetricWarning
	prev := errors.SetWarningHandler(func(w error) {
		var umw *errors.UndefinedMetricWarning
		if errors.As(w, &umw) {
			warnings = append(warnings, umw)
		}
	})
	defer errors.SetWarningHandler(prev)

	s, err := PrecisionRecallFScoreSupport([]int{1, 1}, []int{1, 1}, []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	for c := 1; c < 3; c++ {
		if s.Precision[c] != 0 || s.Recall[c] != 0 || s.F1[c] != 0 {
			t.Errorf("label %d scores = (%v, %v, %v), want zeros", c+1, s.Precision[c], s.Recall[c], s.F1[c])
		}
	}

	if len(warnings) != 3 {
		t.Fatalf("got %d warnings, want 3", len(warnings))
	}
	metrics := []string{warnings[0].Metric, warnings[1].Metric, warnings[2].Metric}
	if !reflect.DeepEqual(metrics, []string{"precision", "recall", "f-score"}) {
		t.Errorf("warned metrics = %v", metrics)
	}
	if !strings.Contains(warnings[0].Condition, "2, 3") {
		t.Errorf("condition %q does not name the labels", warnings[0].Condition)
	}
}

func TestF1Macro(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
		want  float64
	}{
		{
			name:  "single true class predicted correctly",
			yTrue: []int{2, 2, 2},
			yPred: []int{2, 2, 2},
			want:  1,
		},
		{
			// labels {1, 2}: F1(2) = 2*2/(4+0+1) = 0.8, F1(1) = 0
			name:  "prediction outside the true labels counts",
			yTrue: []int{2, 2, 2},
			yPred: []int{2, 2, 1},
			want:  0.4,
		},
		{
			name:  "three classes",
			yTrue: []int{1, 1, 2, 3},
			yPred: []int{1, 2, 2, 3},
			want:  (2.0/3.0 + 2.0/3.0 + 1) / 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := F1Macro(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > tol {
				t.Errorf("F1Macro() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUniqueLabels(t *testing.T) {
	got := UniqueLabels([]int{3, 1, 3}, []int{2, 1})
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("UniqueLabels() = %v", got)
	}
}

func TestClassificationReport(t *testing.T) {
	report, err := ClassificationReport([]int{1, 1, 2, 3}, []int{1, 2, 2, 3}, []int{1, 2, 3}, 4)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(report, "\n")
	want := []string{
		strings.Repeat(" ", 14) + "precision    recall  f1-score   support",
		"",
		"           1     1.0000    0.5000    0.6667         2",
		"           2     0.5000    1.0000    0.6667         1",
		"           3     1.0000    1.0000    1.0000         1",
		"",
		"    accuracy" + strings.Repeat(" ", 25) + "0.7500         4",
		"   macro avg     0.8333    0.8333    0.7778         4",
		"weighted avg     0.8750    0.7500    0.7500         4",
		"",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("ClassificationReport() =\n%s\nwant\n%s", report, strings.Join(want, "\n"))
	}
}

func TestClassificationReport_MicroAvg(t *testing.T) {
	prev := errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(prev)

	// label 3 is outside the reported labels
	report, err := ClassificationReport([]int{1, 2, 3}, []int{1, 2, 1}, []int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(report, "accuracy") || !strings.Contains(report, "micro avg") {
		t.Errorf("expected a micro avg row:\n%s", report)
	}
}
