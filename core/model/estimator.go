package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaPredictor はクラス確率を出力できるモデルのインターフェース
type ProbaPredictor interface {
	// PredictProba は各クラスの確率を返す（列はClasses()の順）
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}
