package preprocessing

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// HandleUnknown の値
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// OneHotEncoder はscikit-learn互換のワンホットエンコーダー
//
// 各列の値を文字列として扱い、学習時に見た値をソートしてカテゴリとする。
// 出力は入力列の順にカテゴリ数ぶんの指示変数ブロックを並べたもの。
type OneHotEncoder struct {
	state *model.StateManager

	// HandleUnknown は未知のカテゴリの扱い ("error" または "ignore")
	HandleUnknown string

	// Columns は学習に使った列名
	Columns []string

	// Categories は列ごとのソート済みカテゴリ
	Categories [][]string

	index []map[string]int
}

// NewOneHotEncoder は未知のカテゴリでエラーを返すエンコーダーを作成する
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{
		state:         model.NewStateManager(),
		HandleUnknown: HandleUnknownError,
	}
}

// NewOneHotEncoderWithHandleUnknown はhandleUnknownを指定してエンコーダーを作成する
func NewOneHotEncoderWithHandleUnknown(handleUnknown string) *OneHotEncoder {
	e := NewOneHotEncoder()
	e.HandleUnknown = handleUnknown
	return e
}

// Fit はdfの各列からカテゴリを学習する
func (e *OneHotEncoder) Fit(df dataframe.DataFrame) error {
	if err := e.validate(); err != nil {
		return err
	}
	if df.Nrow() == 0 || df.Ncol() == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	columns := df.Names()
	categories := make([][]string, len(columns))
	for j, name := range columns {
		seen := make(map[string]bool)
		for _, v := range df.Col(name).Records() {
			if !seen[v] {
				seen[v] = true
				categories[j] = append(categories[j], v)
			}
		}
		sort.Strings(categories[j])
	}

	e.setCategories(columns, categories)
	e.state.SetDimensions(len(columns), df.Nrow())
	e.state.SetFitted()
	return nil
}

func (e *OneHotEncoder) setCategories(columns []string, categories [][]string) {
	e.Columns = columns
	e.Categories = categories
	e.index = make([]map[string]int, len(categories))
	for j, cats := range categories {
		e.index[j] = make(map[string]int, len(cats))
		for k, c := range cats {
			e.index[j][c] = k
		}
	}
}

// Transform はdfをワンホット行列に変換する。列は名前で参照するため順序は問わない。
func (e *OneHotEncoder) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}

	have := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		have[n] = true
	}

	width := 0
	for _, cats := range e.Categories {
		width += len(cats)
	}
	rows := df.Nrow()
	if rows == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	result := mat.NewDense(rows, width, nil)

	offset := 0
	for j, name := range e.Columns {
		if !have[name] {
			return nil, errors.NewValidationError(name, "column seen during fit is missing", df.Names())
		}
		var unknown []string
		for i, v := range df.Col(name).Records() {
			k, ok := e.index[j][v]
			if !ok {
				unknown = append(unknown, v)
				continue
			}
			result.Set(i, offset+k, 1)
		}
		if len(unknown) > 0 {
			unknown = uniqueSorted(unknown)
			if e.HandleUnknown == HandleUnknownError {
				return nil, errors.NewValueError("OneHotEncoder.Transform",
					fmt.Sprintf("found unknown categories %v in column '%s'", unknown, name))
			}
			errors.Warn(errors.NewUnknownCategoryWarning(name, unknown))
		}
		offset += len(e.Categories[j])
	}
	return result, nil
}

// FitTransform は学習と変換を続けて行う
func (e *OneHotEncoder) FitTransform(df dataframe.DataFrame) (*mat.Dense, error) {
	if err := e.Fit(df); err != nil {
		return nil, err
	}
	return e.Transform(df)
}

// FeatureNamesOut は出力列名 "<列>_<カテゴリ>" を返す
func (e *OneHotEncoder) FeatureNamesOut() []string {
	var names []string
	for j, name := range e.Columns {
		for _, c := range e.Categories[j] {
			names = append(names, name+"_"+c)
		}
	}
	return names
}

// IsFitted は学習済みかどうかを返す
func (e *OneHotEncoder) IsFitted() bool {
	return e.state.IsFitted()
}

func (e *OneHotEncoder) validate() error {
	switch e.HandleUnknown {
	case HandleUnknownError, HandleUnknownIgnore:
		return nil
	default:
		return errors.NewValidationError("handle_unknown", "must be 'error' or 'ignore'", e.HandleUnknown)
	}
}

// GetParams はエンコーダーのパラメータを取得する
func (e *OneHotEncoder) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"handle_unknown": e.HandleUnknown,
	}
}

// SetParams はエンコーダーのパラメータを設定する
func (e *OneHotEncoder) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "handle_unknown":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			e.HandleUnknown = s
		default:
			return errors.NewValidationError(key, "unknown parameter for OneHotEncoder", value)
		}
	}
	return e.validate()
}

// Clone は同じパラメータを持つ未学習のエンコーダーを返す
func (e *OneHotEncoder) Clone() model.SKLearnCompatible {
	return NewOneHotEncoderWithHandleUnknown(e.HandleUnknown)
}

type oneHotEncoderJSON struct {
	HandleUnknown string     `json:"handle_unknown"`
	Columns       []string   `json:"columns"`
	Categories    [][]string `json:"categories"`
}

// MarshalJSON は学習済みのカテゴリをJSONにする
func (e *OneHotEncoder) MarshalJSON() ([]byte, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "MarshalJSON"); err != nil {
		return nil, err
	}
	return json.Marshal(oneHotEncoderJSON{
		HandleUnknown: e.HandleUnknown,
		Columns:       e.Columns,
		Categories:    e.Categories,
	})
}

// UnmarshalJSON はMarshalJSONの出力から学習済み状態を復元する
func (e *OneHotEncoder) UnmarshalJSON(data []byte) error {
	var s oneHotEncoderJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "failed to decode OneHotEncoder state")
	}
	if len(s.Columns) != len(s.Categories) {
		return errors.NewDimensionError("OneHotEncoder.UnmarshalJSON", len(s.Columns), len(s.Categories), 1)
	}
	if e.state == nil {
		e.state = model.NewStateManager()
	}
	e.HandleUnknown = s.HandleUnknown
	if err := e.validate(); err != nil {
		return err
	}
	e.setCategories(s.Columns, s.Categories)
	e.state.SetDimensions(len(s.Columns), 0)
	e.state.SetFitted()
	return nil
}

func (e *OneHotEncoder) String() string {
	return fmt.Sprintf("OneHotEncoder(handle_unknown='%s')", e.HandleUnknown)
}

func uniqueSorted(values []string) []string {
	sort.Strings(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			out = append(out, v)
		}
	}
	return out
}
