// Package model_selection provides the leave-one-group-out cross-validation
// splitter.
package model_selection

import (
	"fmt"
	"iter"

	"github.com/YuminosukeSato/losocv/dataset"
	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// Fold is one train/test partition. TestIndices are exactly the rows of
// Subject; TrainIndices are every other row. Both are ascending.
type Fold struct {
	Index        int // 0-based position in subject order
	Subject      string
	TrainIndices []int
	TestIndices  []int
}

// Validate checks that every test row belongs to the held-out subject and no
// train row does. A failure means the splitter is broken, not the data.
func (f Fold) Validate(groups []string) error {
	for _, i := range f.TestIndices {
		if groups[i] != f.Subject {
			return errors.AssertionFailedf("fold %d: test row %d belongs to subject %q, expected %q",
				f.Index+1, i, groups[i], f.Subject)
		}
	}
	for _, i := range f.TrainIndices {
		if groups[i] == f.Subject {
			return errors.AssertionFailedf("fold %d: held-out subject %q found in train row %d",
				f.Index+1, f.Subject, i)
		}
	}
	if len(f.TestIndices)+len(f.TrainIndices) != len(groups) {
		return errors.AssertionFailedf("fold %d: %d train + %d test rows do not cover %d rows",
			f.Index+1, len(f.TrainIndices), len(f.TestIndices), len(groups))
	}
	return nil
}

func (f Fold) String() string {
	return fmt.Sprintf("Fold %02d (subject %s: %d train, %d test)", f.Index+1, f.Subject, len(f.TrainIndices), len(f.TestIndices))
}

// LeaveOneGroupOut holds out one group per fold. Folds follow
// dataset.SortSubjects order, so the sequence is stable across runs.
type LeaveOneGroupOut struct{}

// NewLeaveOneGroupOut creates a leave-one-group-out splitter.
func NewLeaveOneGroupOut() *LeaveOneGroupOut {
	return &LeaveOneGroupOut{}
}

// GetNSplits returns the number of distinct groups.
func (l *LeaveOneGroupOut) GetNSplits(groups []string) (int, error) {
	subjects, err := distinctGroups(groups)
	if err != nil {
		return 0, err
	}
	return len(subjects), nil
}

// Split returns a lazy sequence of folds. The error is reported up front, so
// an empty or single-group input never yields a fold.
func (l *LeaveOneGroupOut) Split(groups []string) (iter.Seq[Fold], error) {
	subjects, err := distinctGroups(groups)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[string][]int, len(subjects))
	for i, g := range groups {
		byGroup[g] = append(byGroup[g], i)
	}

	return func(yield func(Fold) bool) {
		for k, subject := range subjects {
			train := make([]int, 0, len(groups)-len(byGroup[subject]))
			for i, g := range groups {
				if g != subject {
					train = append(train, i)
				}
			}
			test := append([]int(nil), byGroup[subject]...)

			if !yield(Fold{Index: k, Subject: subject, TrainIndices: train, TestIndices: test}) {
				return
			}
		}
	}, nil
}

func distinctGroups(groups []string) ([]string, error) {
	seen := make(map[string]struct{})
	var subjects []string
	for _, g := range groups {
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			subjects = append(subjects, g)
		}
	}
	if len(subjects) < 2 {
		return nil, errors.Wrapf(errors.ErrInsufficientGroups, "leave-one-group-out needs 2 groups, got %d", len(subjects))
	}
	dataset.SortSubjects(subjects)
	return subjects, nil
}
