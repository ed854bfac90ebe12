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

// Estimator は教師あり学習モデルの基本インターフェース
type Estimator interface {
	Fitter
	Predictor
}

// SKLearnCompatible はscikit-learn互換のハイパーパラメータ操作インターフェース。
// パイプラインやグリッドサーチは各ステップをこのインターフェース経由で複製・設定する。
type SKLearnCompatible interface {
	// GetParams はモデルのハイパーパラメータを取得
	GetParams() map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定
	SetParams(params map[string]interface{}) error

	// Clone は同じハイパーパラメータを持つ未学習のインスタンスを作成
	Clone() SKLearnCompatible
}
