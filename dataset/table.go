// Package dataset loads and validates the per-window feature table consumed
// by the LOSO evaluator.
package dataset

import (
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Column names with a fixed meaning. Every other column is a feature.
const (
	SubjectColumn = "subject"
	LabelColumn   = "label"
)

// Labels is the closed label space, in report order.
var Labels = []int{1, 2, 3}

// FeatureTable is a validated feature table: one row per observation window.
type FeatureTable struct {
	// Features are the feature column names in file order.
	Features []string
	// X holds the feature values, NaN for missing cells.
	X *mat.Dense
	// Y holds the class labels, each in Labels.
	Y []int
	// Groups holds the subject id of each row.
	Groups []string
}

// NRows returns the number of observations.
func (t *FeatureTable) NRows() int { return len(t.Y) }

// NFeatures returns the number of feature columns.
func (t *FeatureTable) NFeatures() int { return len(t.Features) }

// Subjects returns the distinct subject ids in SortSubjects order.
func (t *FeatureTable) Subjects() []string {
	seen := make(map[string]struct{}, 16)
	var out []string
	for _, g := range t.Groups {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	SortSubjects(out)
	return out
}

// Subset copies the given rows into a new matrix and label/group slices.
// The result never aliases the table.
func (t *FeatureTable) Subset(indices []int) (*mat.Dense, []int, []string) {
	_, c := t.X.Dims()
	data := make([]float64, 0, len(indices)*c)
	y := make([]int, len(indices))
	groups := make([]string, len(indices))
	for i, idx := range indices {
		data = append(data, t.X.RawRowView(idx)...)
		y[i] = t.Y[idx]
		groups[i] = t.Groups[idx]
	}
	if len(indices) == 0 {
		return &mat.Dense{}, y, groups
	}
	return mat.NewDense(len(indices), c, data), y, groups
}

// SortSubjects sorts subject ids in place: numerically when every id parses
// as a number, lexicographically otherwise. Ties between numerically equal
// ids ("7" and "07") are broken lexicographically.
func SortSubjects(ids []string) {
	nums := make(map[string]float64, len(ids))
	numeric := true
	for _, id := range ids {
		v, err := strconv.ParseFloat(strings.TrimSpace(id), 64)
		if err != nil {
			numeric = false
			break
		}
		nums[id] = v
	}

	if !numeric {
		sort.Strings(ids)
		return
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := nums[ids[i]], nums[ids[j]]
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
}
