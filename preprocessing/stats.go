package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// FeatureStats は特徴量ごとの平均と標準偏差（母標準偏差, ddof=0）
type FeatureStats struct {
	// Mean は各特徴量のNaNを除いた平均値
	Mean []float64

	// Std は各特徴量の標準偏差。定数列では1.0、全てNaNの列ではNaN
	Std []float64

	// Count は各特徴量の非NaN値の個数
	Count []int
}

// FitFeatureStats はXの各列の統計量をNaNを無視して計算する
//
// 全ての値が等しい列は標準偏差0とみなし、1.0に置き換える。
// 非NaN値が一つもない列の平均と標準偏差はNaNになる。
//
// 使用例:
//
//	st, err := preprocessing.FitFeatureStats(XTrain)
//	XTrainZ, err := st.Transform(XTrain)
//	XTestZ, err := st.Transform(XTest)
func FitFeatureStats(X mat.Matrix) (*FeatureStats, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("FitFeatureStats", "empty data", errors.ErrEmptyData)
	}

	st := &FeatureStats{
		Mean:  make([]float64, c),
		Std:   make([]float64, c),
		Count: make([]int, c),
	}
	col := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		col = col[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		st.Count[j] = len(col)
		st.Mean[j], st.Std[j] = meanStd(col)
	}
	return st, nil
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	if constant(values) {
		// 平均を値そのものにすると変換結果がちょうど0になる
		return values[0], 1.0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	if std == 0 {
		std = 1.0
	}
	return mean, std
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// NFeatures は統計量の特徴量数を返す
func (st *FeatureStats) NFeatures() int { return len(st.Mean) }

// Transform は (x - mean) / std を適用した新しい行列を返す。NaNはそのまま伝播する
func (st *FeatureStats) Transform(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != st.NFeatures() {
		return nil, errors.NewDimensionError("FeatureStats.Transform", st.NFeatures(), c, 1)
	}
	if r == 0 {
		return &mat.Dense{}, nil
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - st.Mean[j]) / st.Std[j]
	}, X)
	return result, nil
}
