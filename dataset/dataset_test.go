package dataset

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

const validCSV = `subject,label,hr_mean,eda_peaks
2,1,70.5,3
2,2,80.1,NA
10,3,90.0,5
1,1,65.0,
1,3,NaN,4
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(validCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if tbl.NRows() != 5 {
		t.Errorf("NRows() = %d, want 5", tbl.NRows())
	}
	if !reflect.DeepEqual(tbl.Features, []string{"hr_mean", "eda_peaks"}) {
		t.Errorf("Features = %v", tbl.Features)
	}
	if !reflect.DeepEqual(tbl.Y, []int{1, 2, 3, 1, 3}) {
		t.Errorf("Y = %v", tbl.Y)
	}
	if !reflect.DeepEqual(tbl.Groups, []string{"2", "2", "10", "1", "1"}) {
		t.Errorf("Groups = %v", tbl.Groups)
	}

	if got := tbl.X.At(0, 0); got != 70.5 {
		t.Errorf("X[0,0] = %v, want 70.5", got)
	}
	for _, cell := range [][2]int{{1, 1}, {3, 1}, {4, 0}} {
		if v := tbl.X.At(cell[0], cell[1]); !math.IsNaN(v) {
			t.Errorf("X[%d,%d] = %v, want NaN", cell[0], cell[1], v)
		}
	}

	// numeric ids sort numerically
	if got := tbl.Subjects(); !reflect.DeepEqual(got, []string{"1", "2", "10"}) {
		t.Errorf("Subjects() = %v", got)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name       string
		csv        string
		wantColumn string
		wantIs     error
	}{
		{
			name:       "missing subject",
			csv:        "label,f1\n1,0.5\n2,0.7\n",
			wantColumn: SubjectColumn,
		},
		{
			name:       "missing label",
			csv:        "subject,f1\nA,0.5\nB,0.7\n",
			wantColumn: LabelColumn,
		},
		{
			name:       "label out of range",
			csv:        "subject,label,f1\nA,1,0.5\nB,4,0.7\n",
			wantColumn: LabelColumn,
		},
		{
			name:       "non integral label",
			csv:        "subject,label,f1\nA,1.5,0.5\nB,2,0.7\n",
			wantColumn: LabelColumn,
		},
		{
			name:       "non numeric feature",
			csv:        "subject,label,f1\nA,1,0.5\nB,2,high\n",
			wantColumn: "f1",
		},
		{
			name:   "single subject",
			csv:    "subject,label,f1\nA,1,0.5\nA,2,0.7\n",
			wantIs: errors.ErrInsufficientGroups,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantColumn != "" {
				var colErr *errors.ColumnError
				if !errors.As(err, &colErr) {
					t.Fatalf("expected ColumnError, got %v", err)
				}
				if colErr.Column != tt.wantColumn {
					t.Errorf("Column = %q, want %q", colErr.Column, tt.wantColumn)
				}
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got %v", tt.wantIs, err)
			}
		})
	}
}

func TestReadCSV_NoFeatures(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("subject,label\nA,1\nB,2\n"))
	var valErr *errors.ValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValueError, got %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features_raw.csv")
	if err := os.WriteFile(path, []byte(validCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if tbl.NFeatures() != 2 {
		t.Errorf("NFeatures() = %d, want 2", tbl.NFeatures())
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSubset(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(validCSV))
	if err != nil {
		t.Fatal(err)
	}

	X, y, groups := tbl.Subset([]int{2, 0})
	r, c := X.Dims()
	if r != 2 || c != 2 {
		t.Fatalf("Dims() = (%d, %d), want (2, 2)", r, c)
	}
	if X.At(0, 0) != 90.0 || X.At(1, 0) != 70.5 {
		t.Errorf("unexpected rows %v", X.RawMatrix().Data)
	}
	if !reflect.DeepEqual(y, []int{3, 1}) || !reflect.DeepEqual(groups, []string{"10", "2"}) {
		t.Errorf("y = %v, groups = %v", y, groups)
	}

	// the subset must not alias the table
	X.Set(0, 0, -1)
	if tbl.X.At(2, 0) != 90.0 {
		t.Error("Subset aliases the table data")
	}
}

func TestSortSubjects(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"numeric", []string{"10", "9", "1"}, []string{"1", "9", "10"}},
		{"zero padded ties", []string{"07", "7", "3"}, []string{"3", "07", "7"}},
		{"lexicographic", []string{"S10", "S9", "S1"}, []string{"S1", "S10", "S9"}},
		{"mixed falls back to lexicographic", []string{"10", "A", "9"}, []string{"10", "9", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]string(nil), tt.in...)
			SortSubjects(got)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SortSubjects(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
