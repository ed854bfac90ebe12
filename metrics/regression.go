// Package metrics は回帰モデルの評価指標を提供する
//
// すべての関数は n×1 の列ベクトル（*mat.VecDense や n×1 の *mat.Dense）を受け取る。
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// columns は入力を検証し、2つの列ベクトルをスライスとして取り出す
func columns(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rPred != rTrue {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range t {
		diff := t[i] - p[i]
		sum += diff * diff
	}
	return sum / float64(len(t)), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := range t {
		sum += math.Abs(t[i] - p[i])
	}
	return sum / float64(len(t)), nil
}

// MedianAbsoluteError は絶対誤差の中央値を計算する。
// 要素数が偶数の場合は中央の2つの平均を返す。
func MedianAbsoluteError(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MedianAbsoluteError", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	abs := make([]float64, len(t))
	for i := range t {
		abs[i] = math.Abs(t[i] - p[i])
	}
	sort.Float64s(abs)

	n := len(abs)
	if n%2 == 1 {
		return abs[n/2], nil
	}
	return (abs[n/2-1] + abs[n/2]) / 2, nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue の分散が0の場合、予測が完全一致なら1.0、そうでなければ0.0を返し
// UndefinedMetricWarning を出す。サンプルが2未満ならNaNを返す。
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	n := len(t)
	if n < 2 {
		errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "less than two samples", math.NaN()))
		return math.NaN(), nil
	}

	var yMean float64
	for _, v := range t {
		yMean += v
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := range t {
		tss += (t[i] - yMean) * (t[i] - yMean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "zero variance in y_true", result))
		return result, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// NegMeanAbsoluteError はグリッドサーチ用のスコア（大きいほど良い）を返す
func NegMeanAbsoluteError(yTrue, yPred mat.Matrix) (float64, error) {
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return -mae, nil
}
