// Package preprocessing はscikit-learn互換の前処理変換器を提供する
package preprocessing

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// zeroRangeTolerance 未満の範囲は定数特徴量とみなす
const zeroRangeTolerance = 10 * 2.220446049250313e-16

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする。
// 学習範囲外の値はクリップしない。
type MinMaxScaler struct {
	state *model.StateManager

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// Scale は各特徴量の倍率 (range / (max - min))。定数特徴量は range / 1
	Scale []float64

	// Min は各特徴量のオフセット
	Min []float64

	// NFeatures は特徴量の数
	NFeatures int
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	XScaled, err := scaler.FitTransform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	dataMin := make([]float64, c)
	dataMax := make([]float64, c)
	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		dataMin[j], dataMax[j] = lo, hi
	}

	m.setStatistics(dataMin, dataMax)
	m.state.SetDimensions(c, r)
	m.state.SetFitted()
	return nil
}

func (m *MinMaxScaler) setStatistics(dataMin, dataMax []float64) {
	c := len(dataMin)
	m.NFeatures = c
	m.DataMin = dataMin
	m.DataMax = dataMax
	m.Scale = make([]float64, c)
	m.Min = make([]float64, c)

	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for j := 0; j < c; j++ {
		dataRange := dataMax[j] - dataMin[j]
		if dataRange < zeroRangeTolerance {
			dataRange = 1.0
		}
		m.Scale[j] = featureRange / dataRange
		m.Min[j] = m.FeatureRange[0] - dataMin[j]*m.Scale[j]
	}
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}
	if r == 0 {
		return nil, errors.NewModelError("MinMaxScaler.Transform", "empty data", errors.ErrEmptyData)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*m.Scale[j]+m.Min[j])
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-m.Min[j])/m.Scale[j])
		}
	}
	return result, nil
}

// IsFitted は学習済みかどうかを返す
func (m *MinMaxScaler) IsFitted() bool {
	return m.state.IsFitted()
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// SetParams はスケーラーのパラメータを設定する
func (m *MinMaxScaler) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "feature_range":
			fr, ok := value.([2]float64)
			if !ok {
				return errors.NewValidationError(key, "must be [2]float64", value)
			}
			m.FeatureRange = fr
		default:
			return errors.NewValidationError(key, "unknown parameter for MinMaxScaler", value)
		}
	}
	return nil
}

// Clone は同じパラメータを持つ未学習のスケーラーを返す
func (m *MinMaxScaler) Clone() model.SKLearnCompatible {
	return NewMinMaxScaler(m.FeatureRange)
}

type minMaxScalerJSON struct {
	FeatureRange [2]float64 `json:"feature_range"`
	DataMin      []float64  `json:"data_min"`
	DataMax      []float64  `json:"data_max"`
}

// MarshalJSON は学習済みの統計情報をJSONにする
func (m *MinMaxScaler) MarshalJSON() ([]byte, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "MarshalJSON"); err != nil {
		return nil, err
	}
	return json.Marshal(minMaxScalerJSON{
		FeatureRange: m.FeatureRange,
		DataMin:      m.DataMin,
		DataMax:      m.DataMax,
	})
}

// UnmarshalJSON はMarshalJSONの出力から学習済み状態を復元する
func (m *MinMaxScaler) UnmarshalJSON(data []byte) error {
	var s minMaxScalerJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "failed to decode MinMaxScaler state")
	}
	if len(s.DataMin) != len(s.DataMax) {
		return errors.NewDimensionError("MinMaxScaler.UnmarshalJSON", len(s.DataMin), len(s.DataMax), 1)
	}
	if m.state == nil {
		m.state = model.NewStateManager()
	}
	m.FeatureRange = s.FeatureRange
	m.setStatistics(s.DataMin, s.DataMax)
	m.state.SetDimensions(len(s.DataMin), 0)
	m.state.SetFitted()
	return nil
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}
