// Package feature_selection はscikit-learn互換の単変量特徴量選択を提供する
package feature_selection

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/core/parallel"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// ScoreFunc は各特徴量のスコアとp値を返す
type ScoreFunc func(X, y mat.Matrix) (scores, pValues []float64, err error)

// fRegressionParallelThreshold 以上の特徴量数で列ごとの計算を並列化する
const fRegressionParallelThreshold = 64

// FRegression は各特徴量と目的変数の単回帰F検定を行う
//
// 中心化したピアソン相関 r から F = r²/(1-r²)·(n-2) を計算し、
// p値は自由度 (1, n-2) のF分布の上側確率とする。
// 定数列は F=0, p=1、完全相関 (|r|=1) は F=MaxFloat64, p=0 とする。
func FRegression(X, y mat.Matrix) ([]float64, []float64, error) {
	n, p := X.Dims()
	yRows, yCols := y.Dims()
	if n != yRows {
		return nil, nil, errors.NewDimensionError("FRegression", n, yRows, 0)
	}
	if yCols != 1 {
		return nil, nil, errors.NewDimensionError("FRegression", 1, yCols, 1)
	}
	if n < 3 {
		return nil, nil, errors.NewValueError("FRegression", fmt.Sprintf("need at least 3 samples, got %d", n))
	}

	yv := mat.Col(nil, 0, y)
	yMean := stat.Mean(yv, nil)
	var yNorm float64
	for i := range yv {
		yv[i] -= yMean
		yNorm += yv[i] * yv[i]
	}
	yNorm = math.Sqrt(yNorm)

	dof := float64(n - 2)
	fdist := distuv.F{D1: 1, D2: dof}
	scores := make([]float64, p)
	pValues := make([]float64, p)

	parallel.ParallelizeWithThreshold(p, fRegressionParallelThreshold, func(start, end int) {
		col := make([]float64, n)
		for j := start; j < end; j++ {
			mat.Col(col, j, X)
			xMean := stat.Mean(col, nil)
			var dot, xNorm float64
			for i, v := range col {
				d := v - xMean
				dot += d * yv[i]
				xNorm += d * d
			}
			xNorm = math.Sqrt(xNorm)
			if xNorm == 0 || yNorm == 0 {
				scores[j], pValues[j] = 0, 1
				continue
			}
			r := dot / (xNorm * yNorm)
			r2 := r * r
			if r2 >= 1 {
				scores[j], pValues[j] = math.MaxFloat64, 0
				continue
			}
			f := r2 / (1 - r2) * dof
			scores[j] = f
			pValues[j] = fdist.Survival(f)
		}
	})

	return scores, pValues, nil
}

// SelectKBest はスコア上位k個の特徴量を選択する
//
// 同点の場合は後ろの特徴量が優先される。選択された列は元の順序を保つ。
// k が特徴量数以上ならすべての列を残す。
type SelectKBest struct {
	state *model.StateManager

	scoreFunc ScoreFunc
	k         int

	// 学習結果
	scores_  []float64
	pValues_ []float64
	support_ []bool
}

// NewSelectKBest は新しいSelectKBestを作成する
func NewSelectKBest(scoreFunc ScoreFunc, k int) *SelectKBest {
	if scoreFunc == nil {
		scoreFunc = FRegression
	}
	return &SelectKBest{
		state:     model.NewStateManager(),
		scoreFunc: scoreFunc,
		k:         k,
	}
}

// Fit はスコアを計算して残す特徴量を決める
func (s *SelectKBest) Fit(X, y mat.Matrix) error {
	if s.k < 0 {
		return errors.NewValidationError("k", "must be non-negative", s.k)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("SelectKBest.Fit", "empty data", errors.ErrEmptyData)
	}

	scores, pValues, err := s.scoreFunc(X, y)
	if err != nil {
		return err
	}
	if len(scores) != p {
		return errors.NewDimensionError("SelectKBest.Fit", p, len(scores), 1)
	}

	s.scores_ = scores
	s.pValues_ = pValues
	s.support_ = topK(scores, s.k)
	s.state.SetDimensions(p, n)
	s.state.SetFitted()
	return nil
}

// topK marks the k highest scores. NaN scores rank lowest.
func topK(scores []float64, k int) []bool {
	p := len(scores)
	support := make([]bool, p)
	if k >= p {
		for j := range support {
			support[j] = true
		}
		return support
	}
	order := make([]int, p)
	for j := range order {
		order[j] = j
	}
	key := func(j int) float64 {
		if math.IsNaN(scores[j]) {
			return math.Inf(-1)
		}
		return scores[j]
	}
	sort.SliceStable(order, func(a, b int) bool {
		return key(order[a]) < key(order[b])
	})
	for _, j := range order[p-k:] {
		support[j] = true
	}
	return support
}

// Transform は選択された列だけを返す
func (s *SelectKBest) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("SelectKBest", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != len(s.support_) {
		return nil, errors.NewDimensionError("SelectKBest.Transform", len(s.support_), c, 1)
	}

	selected := s.GetSupport()
	if len(selected) == 0 {
		return nil, errors.NewValueError("SelectKBest.Transform", "no features were selected")
	}
	result := mat.NewDense(r, len(selected), nil)
	for jj, j := range selected {
		for i := 0; i < r; i++ {
			result.Set(i, jj, X.At(i, j))
		}
	}
	return result, nil
}

// FitTransform は学習と変換を続けて行う
func (s *SelectKBest) FitTransform(X, y mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X, y); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetSupport は選択された列のインデックスを昇順で返す
func (s *SelectKBest) GetSupport() []int {
	var idx []int
	for j, keep := range s.support_ {
		if keep {
			idx = append(idx, j)
		}
	}
	return idx
}

// Scores は学習時のスコアを返す
func (s *SelectKBest) Scores() []float64 { return s.scores_ }

// PValues は学習時のp値を返す
func (s *SelectKBest) PValues() []float64 { return s.pValues_ }

// K は選択する特徴量数を返す
func (s *SelectKBest) K() int { return s.k }

// IsFitted は学習済みかどうかを返す
func (s *SelectKBest) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams はパラメータを取得する
func (s *SelectKBest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"k": s.k,
	}
}

// SetParams はパラメータを設定する。k は int と整数値の float64 を受け付ける
func (s *SelectKBest) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "k":
			k, err := toInt(value)
			if err != nil {
				return errors.NewValidationError(key, err.Error(), value)
			}
			if k < 0 {
				return errors.NewValidationError(key, "must be non-negative", value)
			}
			s.k = k
		default:
			return errors.NewValidationError(key, "unknown parameter for SelectKBest", value)
		}
	}
	return nil
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("must be an integer")
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

// Clone は同じパラメータを持つ未学習のインスタンスを返す
func (s *SelectKBest) Clone() model.SKLearnCompatible {
	return NewSelectKBest(s.scoreFunc, s.k)
}

type selectKBestJSON struct {
	K       int       `json:"k"`
	Scores  []float64 `json:"scores"`
	PValues []float64 `json:"pvalues"`
	Support []bool    `json:"support"`
}

// MarshalJSON は学習結果をJSONにする。MaxFloat64のスコアもそのまま表現できる
func (s *SelectKBest) MarshalJSON() ([]byte, error) {
	if err := s.state.RequireFitted("SelectKBest", "MarshalJSON"); err != nil {
		return nil, err
	}
	for _, v := range s.scores_ {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError("SelectKBest.MarshalJSON", "scores must be finite")
		}
	}
	return json.Marshal(selectKBestJSON{
		K:       s.k,
		Scores:  s.scores_,
		PValues: s.pValues_,
		Support: s.support_,
	})
}

// UnmarshalJSON はMarshalJSONの出力から学習済み状態を復元する
func (s *SelectKBest) UnmarshalJSON(data []byte) error {
	var in selectKBestJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode SelectKBest state")
	}
	if len(in.Scores) != len(in.Support) {
		return errors.NewDimensionError("SelectKBest.UnmarshalJSON", len(in.Support), len(in.Scores), 1)
	}
	if s.state == nil {
		s.state = model.NewStateManager()
	}
	if s.scoreFunc == nil {
		s.scoreFunc = FRegression
	}
	s.k = in.K
	s.scores_ = in.Scores
	s.pValues_ = in.PValues
	s.support_ = in.Support
	s.state.SetDimensions(len(in.Support), 0)
	s.state.SetFitted()
	return nil
}

func (s *SelectKBest) String() string {
	return fmt.Sprintf("SelectKBest(k=%d)", s.k)
}
