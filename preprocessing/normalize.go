package preprocessing

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/losocv/pkg/errors"
)

// NormMode は分割ごとの特徴量正規化の方式
type NormMode int

const (
	// NormGlobal は訓練データで学習した統計量を訓練・テストの両方に適用する
	NormGlobal NormMode = iota
	// NormNone は何も変換しない
	NormNone
	// NormTransductiveSubject は被験者ごとに、その被験者自身の統計量で標準化する。
	// テスト被験者のラベルなしデータの統計量を使うため、トランスダクティブな評価になる
	NormTransductiveSubject
)

var normModeNames = map[NormMode]string{
	NormGlobal:              "global",
	NormNone:                "none",
	NormTransductiveSubject: "transductive_subject",
}

// NormModeNames は受け付けるモード名の一覧
var NormModeNames = []string{"global", "none", "transductive_subject"}

// ParseNormMode はモード名をNormModeに変換する。未知の名前はValidationError
func ParseNormMode(s string) (NormMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for mode, n := range normModeNames {
		if n == name {
			return mode, nil
		}
	}
	return NormGlobal, errors.NewValidationError("norm", "must be one of "+strings.Join(NormModeNames, ", "), s)
}

func (m NormMode) String() string {
	if n, ok := normModeNames[m]; ok {
		return n
	}
	return "unknown"
}

// IsLeaky はテスト被験者の統計量を変換に使うモードかどうかを返す
func (m NormMode) IsLeaky() bool {
	return m == NormTransductiveSubject
}

// ZScorePerGroup はグループごとに統計量を計算し、そのグループの行だけに適用する
func ZScorePerGroup(X mat.Matrix, groups []string) (*mat.Dense, error) {
	r, c := X.Dims()
	if len(groups) != r {
		return nil, errors.NewDimensionError("ZScorePerGroup", r, len(groups), 0)
	}
	if r == 0 {
		return &mat.Dense{}, nil
	}

	rowsByGroup := make(map[string][]int)
	var order []string
	for i, g := range groups {
		if _, ok := rowsByGroup[g]; !ok {
			order = append(order, g)
		}
		rowsByGroup[g] = append(rowsByGroup[g], i)
	}

	result := mat.NewDense(r, c, nil)
	for _, g := range order {
		rows := rowsByGroup[g]
		sub := mat.NewDense(len(rows), c, nil)
		for k, i := range rows {
			for j := 0; j < c; j++ {
				sub.Set(k, j, X.At(i, j))
			}
		}
		st, err := FitFeatureStats(sub)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", g)
		}
		z, err := st.Transform(sub)
		if err != nil {
			return nil, err
		}
		for k, i := range rows {
			result.SetRow(i, z.RawRowView(k))
		}
	}
	return result, nil
}

// FoldNormalizer は一つの分割の訓練・テスト行列を正規化する。
// 入力行列は変更しない
type FoldNormalizer func(XTrain, XTest *mat.Dense, gTrain, gTest []string) (*mat.Dense, *mat.Dense, error)

// NewFoldNormalizer は実行開始時に一度だけモードを解決し、分割ごとに呼ぶ関数を返す
func NewFoldNormalizer(mode NormMode) (FoldNormalizer, error) {
	switch mode {
	case NormGlobal:
		return normalizeGlobal, nil
	case NormNone:
		return normalizeNone, nil
	case NormTransductiveSubject:
		return normalizeTransductive, nil
	default:
		return nil, errors.NewValidationError("norm", "unknown normalization mode", int(mode))
	}
}

func normalizeGlobal(XTrain, XTest *mat.Dense, _, _ []string) (*mat.Dense, *mat.Dense, error) {
	scaler := NewStandardScaler()
	if err := scaler.Fit(XTrain); err != nil {
		return nil, nil, err
	}
	trainZ, err := scaler.TransformDense(XTrain)
	if err != nil {
		return nil, nil, err
	}
	testZ, err := scaler.TransformDense(XTest)
	if err != nil {
		return nil, nil, err
	}
	return trainZ, testZ, nil
}

func normalizeNone(XTrain, XTest *mat.Dense, _, _ []string) (*mat.Dense, *mat.Dense, error) {
	return XTrain, XTest, nil
}

func normalizeTransductive(XTrain, XTest *mat.Dense, gTrain, gTest []string) (*mat.Dense, *mat.Dense, error) {
	trainZ, err := ZScorePerGroup(XTrain, gTrain)
	if err != nil {
		return nil, nil, errors.Wrap(err, "normalizing train subjects")
	}
	testZ, err := ZScorePerGroup(XTest, gTest)
	if err != nil {
		return nil, nil, errors.Wrap(err, "normalizing test subject")
	}
	return trainZ, testZ, nil
}
