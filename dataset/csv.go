package dataset

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// missingTokens are the cell values read as a missing feature value.
var missingTokens = []string{"", "NA", "NaN", "nan", "N/A", "null", "<nil>"}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string) (*FeatureTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening feature table %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading feature table %s", path)
	}
	return t, nil
}

// ReadCSV parses a comma-separated feature table with a header row.
//
// The subject column is always read as text so ids such as "007" keep their
// form. The label column must hold integral values in {1, 2, 3}. Every other
// column is a feature; missing cells become NaN and any other non-numeric
// cell is a ColumnError.
func ReadCSV(r io.Reader) (*FeatureTable, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.NaNValues(missingTokens),
		dataframe.WithTypes(map[string]series.Type{
			SubjectColumn: series.String,
			LabelColumn:   series.Float,
		}),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "parsing CSV")
	}
	return fromDataFrame(df)
}

func fromDataFrame(df dataframe.DataFrame) (*FeatureTable, error) {
	names := df.Names()
	if !contains(names, SubjectColumn) {
		return nil, errors.NewColumnError(SubjectColumn, "required column is missing", names)
	}
	if !contains(names, LabelColumn) {
		return nil, errors.NewColumnError(LabelColumn, "required column is missing", names)
	}

	var features []string
	for _, n := range names {
		if n != SubjectColumn && n != LabelColumn {
			features = append(features, n)
		}
	}
	if len(features) == 0 {
		return nil, errors.NewValueError("ReadCSV", "table has no feature columns besides subject and label")
	}

	nRows := df.Nrow()
	if nRows == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "feature table has no rows")
	}

	groups, err := readSubjects(df.Col(SubjectColumn))
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(df.Col(LabelColumn))
	if err != nil {
		return nil, err
	}

	X := mat.NewDense(nRows, len(features), nil)
	for j, name := range features {
		col, err := readFeature(name, df.Col(name))
		if err != nil {
			return nil, err
		}
		X.SetCol(j, col)
	}

	t := &FeatureTable{Features: features, X: X, Y: labels, Groups: groups}
	if n := len(t.Subjects()); n < 2 {
		return nil, errors.Wrapf(errors.ErrInsufficientGroups, "feature table has %d distinct subject(s)", n)
	}
	return t, nil
}

func readSubjects(s series.Series) ([]string, error) {
	records := s.Records()
	out := make([]string, len(records))
	for i, rec := range records {
		id := strings.TrimSpace(rec)
		if isMissing(id) {
			return nil, errors.NewColumnError(SubjectColumn, fmt.Sprintf("empty subject id at row %d", i+1), nil)
		}
		out[i] = id
	}
	return out, nil
}

func readLabels(s series.Series) ([]int, error) {
	vals := s.Float()
	out := make([]int, len(vals))
	for i, v := range vals {
		label, ok := toLabel(v)
		if !ok {
			return nil, errors.NewColumnError(LabelColumn,
				fmt.Sprintf("value %q at row %d is not one of 1, 2, 3", s.Elem(i).String(), i+1), nil)
		}
		out[i] = label
	}
	return out, nil
}

func toLabel(v float64) (int, bool) {
	if math.IsNaN(v) || v != math.Trunc(v) {
		return 0, false
	}
	for _, l := range Labels {
		if int(v) == l {
			return l, true
		}
	}
	return 0, false
}

func readFeature(name string, s series.Series) ([]float64, error) {
	switch s.Type() {
	case series.Float, series.Int, series.Bool:
		return s.Float(), nil
	}

	// Type detection falls back to String when any cell is not a number.
	records := s.Records()
	out := make([]float64, len(records))
	for i, rec := range records {
		cell := strings.TrimSpace(rec)
		if isMissing(cell) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.NewColumnError(name, fmt.Sprintf("non-numeric value %q at row %d", rec, i+1), nil)
		}
		out[i] = v
	}
	return out, nil
}

func isMissing(cell string) bool {
	for _, tok := range missingTokens {
		if cell == tok {
			return true
		}
	}
	return false
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
