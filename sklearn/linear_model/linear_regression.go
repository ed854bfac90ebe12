// Package linear_model はscikit-learn互換の線形モデルを提供する
package linear_model

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/metrics"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

const (
	modelType      = "LinearRegression"
	weightsVersion = "1"
)

// LinearRegression is a linear regression model using ordinary least squares.
//
// The system is solved through a thin SVD and the minimum-norm solution is
// taken, so rank-deficient designs (one-hot blocks next to an intercept,
// duplicated columns) are accepted. With fit_intercept the columns of X and
// y are centered first and the intercept is recovered as ȳ - x̄·w.
type LinearRegression struct {
	state *model.StateManager

	// Hyperparameters
	fitIntercept bool

	// Learned parameters
	coef_      []float64
	intercept_ float64

	nFeatures_ int
	nSamples_  int
	rank_      int
	singular_  []float64
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}

	XWork := mat.DenseCopyOf(X)
	yWork := mat.DenseCopyOf(y)
	if err := errors.CheckMatrix("LinearRegression.Fit", XWork); err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", yWork); err != nil {
		return err
	}

	// 中心化
	xMean := make([]float64, cols)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < cols; j++ {
			var sum float64
			for i := 0; i < rows; i++ {
				sum += XWork.At(i, j)
			}
			xMean[j] = sum / float64(rows)
			for i := 0; i < rows; i++ {
				XWork.Set(i, j, XWork.At(i, j)-xMean[j])
			}
		}
		for i := 0; i < rows; i++ {
			yMean += yWork.At(i, 0)
		}
		yMean /= float64(rows)
		for i := 0; i < rows; i++ {
			yWork.Set(i, 0, yWork.At(i, 0)-yMean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(XWork, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD did not converge", errors.ErrSingularMatrix)
	}

	rcond := math.Nextafter(1, 2) - 1
	if rows > cols {
		rcond *= float64(rows)
	} else {
		rcond *= float64(cols)
	}
	rank := svd.Rank(rcond)

	coef := make([]float64, cols)
	if rank > 0 {
		solution := mat.NewDense(cols, 1, nil)
		svd.SolveTo(solution, yWork, rank)
		mat.Col(coef, 0, solution)
	}

	intercept := 0.0
	if lr.fitIntercept {
		intercept = yMean
		for j := 0; j < cols; j++ {
			intercept -= xMean[j] * coef[j]
		}
	}

	lr.coef_ = coef
	lr.intercept_ = intercept
	lr.nFeatures_ = cols
	lr.nSamples_ = rows
	lr.rank_ = rank
	lr.singular_ = svd.Values(nil)

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted(modelType, "Predict"); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	if cols != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.nFeatures_, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewModelError("LinearRegression.Predict", "empty data", errors.ErrEmptyData)
	}

	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := 0.0
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * lr.coef_[j]
		}
		predictions.Set(i, 0, pred+lr.intercept_)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, predictions)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef_ == nil {
		return nil
	}
	coef := make([]float64, len(lr.coef_))
	copy(coef, lr.coef_)
	return coef
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// Rank は学習時の計画行列（中心化後）のランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank_
}

// SingularValues は学習時の特異値を降順で返す
func (lr *LinearRegression) SingularValues() []float64 {
	return append([]float64(nil), lr.singular_...)
}

// FitIntercept は切片を学習する設定かどうかを返す
func (lr *LinearRegression) FitIntercept() bool {
	return lr.fitIntercept
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			lr.fitIntercept = v
		default:
			return errors.NewValidationError(key, "unknown parameter for LinearRegression", value)
		}
	}
	return nil
}

// ExportWeights はモデルの重みをエクスポート（完全な再現性を保証）
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted(modelType, "ExportWeights"); err != nil {
		return nil, err
	}

	weights := &model.ModelWeights{
		ModelType:    modelType,
		Version:      weightsVersion,
		Coefficients: lr.Coef(),
		Intercept:    lr.intercept_,
		FitIntercept: lr.fitIntercept,
		NFeatures:    lr.nFeatures_,
		NSamples:     lr.nSamples_,
		Rank:         lr.rank_,
	}
	weights.Checksum = weights.ComputeChecksum()
	return weights, nil
}

// ImportWeights はモデルの重みをインポート（完全な再現性を保証）
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights cannot be nil")
	}
	if weights.ModelType != modelType {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", modelType, weights.ModelType))
	}
	if weights.Version != weightsVersion {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("unsupported weights version %q", weights.Version))
	}
	if err := weights.Validate(); err != nil {
		return errors.Wrap(err, "invalid LinearRegression weights")
	}

	if lr.state == nil {
		lr.state = model.NewStateManager()
	}
	lr.fitIntercept = weights.FitIntercept
	lr.coef_ = append([]float64(nil), weights.Coefficients...)
	lr.intercept_ = weights.Intercept
	lr.nFeatures_ = weights.NFeatures
	lr.nSamples_ = weights.NSamples
	lr.rank_ = weights.Rank
	lr.singular_ = nil

	lr.state.SetDimensions(lr.nFeatures_, lr.nSamples_)
	lr.state.SetFitted()
	return nil
}

// MarshalJSON は学習済みの重みをJSONにする
func (lr *LinearRegression) MarshalJSON() ([]byte, error) {
	weights, err := lr.ExportWeights()
	if err != nil {
		return nil, err
	}
	return json.Marshal(weights)
}

// UnmarshalJSON はMarshalJSONの出力から重みを復元する
func (lr *LinearRegression) UnmarshalJSON(data []byte) error {
	var weights model.ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return errors.Wrap(err, "failed to decode LinearRegression weights")
	}
	return lr.ImportWeights(&weights)
}

// GetWeightHash calculates the hash value of weights (for verification)
func (lr *LinearRegression) GetWeightHash() string {
	weights, err := lr.ExportWeights()
	if err != nil {
		return ""
	}
	return weights.Checksum
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// Clone は同じハイパーパラメータを持つ未学習のインスタンスを作成
func (lr *LinearRegression) Clone() model.SKLearnCompatible {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d, fitted=true)",
		lr.fitIntercept, lr.nFeatures_, lr.rank_)
}
