// Package compose applies different transformers to different column groups
// of a gota data frame and concatenates the results.
package compose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/core/parallel"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// Remainder の値
const (
	RemainderDrop        = "drop"
	RemainderPassthrough = "passthrough"
)

// TableTransformer transforms the columns of a data frame into a matrix.
type TableTransformer interface {
	model.SKLearnCompatible

	Fit(df dataframe.DataFrame) error
	Transform(df dataframe.DataFrame) (*mat.Dense, error)
	// FeatureNamesOut names the output columns, valid after Fit.
	FeatureNamesOut() []string
}

// NamedTransformer binds a transformer to the columns it consumes.
type NamedTransformer struct {
	Name        string
	Transformer TableTransformer
	Columns     []string
}

// ColumnTransformer はscikit-learn互換の列変換器
//
// Transformers are applied in declaration order and their outputs are
// concatenated; columns no transformer claims are dropped or passed
// through as numeric values depending on Remainder. Columns are looked up
// by name, so the frame given to Transform may order them differently.
type ColumnTransformer struct {
	state *model.StateManager

	transformers []NamedTransformer
	remainder    string

	remainderColumns []string
	featureNames     []string
}

// ColumnTransformerOption は設定オプション
type ColumnTransformerOption func(*ColumnTransformer)

// WithRemainder sets the policy for unclaimed columns ("drop" by default).
func WithRemainder(remainder string) ColumnTransformerOption {
	return func(ct *ColumnTransformer) {
		ct.remainder = remainder
	}
}

// NewColumnTransformer creates an unfitted ColumnTransformer.
func NewColumnTransformer(transformers []NamedTransformer, options ...ColumnTransformerOption) *ColumnTransformer {
	ct := &ColumnTransformer{
		state:        model.NewStateManager(),
		transformers: transformers,
		remainder:    RemainderDrop,
	}
	for _, opt := range options {
		opt(ct)
	}
	return ct
}

func (ct *ColumnTransformer) validate(df dataframe.DataFrame) error {
	if ct.remainder != RemainderDrop && ct.remainder != RemainderPassthrough {
		return errors.NewValidationError("remainder", "must be 'drop' or 'passthrough'", ct.remainder)
	}
	if df.Nrow() == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	have := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		have[n] = true
	}
	names := make(map[string]bool, len(ct.transformers))
	for _, nt := range ct.transformers {
		if nt.Name == "" || strings.Contains(nt.Name, "__") {
			return errors.NewValidationError("name", "transformer names must be non-empty and must not contain '__'", nt.Name)
		}
		if names[nt.Name] {
			return errors.NewValidationError("name", "duplicate transformer name", nt.Name)
		}
		names[nt.Name] = true
		for _, c := range nt.Columns {
			if !have[c] {
				return errors.NewValidationError(c, "column not found for transformer "+nt.Name, df.Names())
			}
		}
	}
	return nil
}

// Fit fits every transformer on its column group and records the remainder.
func (ct *ColumnTransformer) Fit(df dataframe.DataFrame) error {
	if err := ct.validate(df); err != nil {
		return err
	}

	claimed := make(map[string]bool)
	var featureNames []string
	for _, nt := range ct.transformers {
		for _, c := range nt.Columns {
			claimed[c] = true
		}
		if len(nt.Columns) == 0 {
			continue
		}
		sub := df.Select(nt.Columns)
		if sub.Err != nil {
			return errors.WithStack(sub.Err)
		}
		if err := nt.Transformer.Fit(sub); err != nil {
			return errors.Wrapf(err, "failed to fit transformer %s", nt.Name)
		}
		for _, f := range nt.Transformer.FeatureNamesOut() {
			featureNames = append(featureNames, nt.Name+"__"+f)
		}
	}

	var remainder []string
	if ct.remainder == RemainderPassthrough {
		for _, n := range df.Names() {
			if claimed[n] {
				continue
			}
			if t := df.Col(n).Type(); t != series.Int && t != series.Float && t != series.Bool {
				return errors.NewValidationError(n, "passthrough column must be numeric", t)
			}
			remainder = append(remainder, n)
			featureNames = append(featureNames, "remainder__"+n)
		}
	}
	if len(featureNames) == 0 {
		return errors.NewValueError("ColumnTransformer.Fit", "no output features")
	}

	ct.remainderColumns = remainder
	ct.featureNames = featureNames
	ct.state.SetDimensions(df.Ncol(), df.Nrow())
	ct.state.SetFitted()
	return nil
}

// Transform applies the fitted transformers and concatenates their outputs.
func (ct *ColumnTransformer) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	if err := ct.state.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	rows := df.Nrow()
	if rows == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	var blocks []*mat.Dense
	for _, nt := range ct.transformers {
		if len(nt.Columns) == 0 {
			continue
		}
		sub, err := selectColumns(df, nt.Columns)
		if err != nil {
			return nil, err
		}
		block, err := nt.Transformer.Transform(sub)
		if err != nil {
			return nil, errors.Wrapf(err, "transformer %s failed", nt.Name)
		}
		blocks = append(blocks, block)
	}
	if len(ct.remainderColumns) > 0 {
		sub, err := selectColumns(df, ct.remainderColumns)
		if err != nil {
			return nil, err
		}
		block, err := NumericMatrix(sub)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	result := hstack(rows, blocks)
	if _, c := result.Dims(); c != len(ct.featureNames) {
		return nil, errors.NewDimensionError("ColumnTransformer.Transform", len(ct.featureNames), c, 1)
	}
	return result, nil
}

// FitTransform fits on df and transforms it.
func (ct *ColumnTransformer) FitTransform(df dataframe.DataFrame) (*mat.Dense, error) {
	if err := ct.Fit(df); err != nil {
		return nil, err
	}
	return ct.Transform(df)
}

// FeatureNamesOut returns "<transformer>__<feature>" for every output column.
func (ct *ColumnTransformer) FeatureNamesOut() []string {
	return append([]string(nil), ct.featureNames...)
}

// RemainderColumns returns the passthrough columns found during Fit.
func (ct *ColumnTransformer) RemainderColumns() []string {
	return append([]string(nil), ct.remainderColumns...)
}

// Transformers returns the configured transformers.
func (ct *ColumnTransformer) Transformers() []NamedTransformer {
	return ct.transformers
}

// IsFitted は学習済みかどうかを返す
func (ct *ColumnTransformer) IsFitted() bool {
	return ct.state.IsFitted()
}

// GetParams returns remainder plus every transformer parameter as
// "<name>__<param>".
func (ct *ColumnTransformer) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"remainder": ct.remainder,
	}
	for _, nt := range ct.transformers {
		for k, v := range nt.Transformer.GetParams() {
			params[nt.Name+"__"+k] = v
		}
	}
	return params
}

// SetParams sets remainder or routes "<name>__<param>" to a transformer.
func (ct *ColumnTransformer) SetParams(params map[string]interface{}) error {
	nested := make(map[string]map[string]interface{})
	for key, value := range params {
		if key == "remainder" {
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			ct.remainder = s
			continue
		}
		name, param, ok := strings.Cut(key, "__")
		if !ok {
			return errors.NewValidationError(key, "unknown parameter for ColumnTransformer", value)
		}
		if nested[name] == nil {
			nested[name] = make(map[string]interface{})
		}
		nested[name][param] = value
	}
	for name, p := range nested {
		nt, ok := ct.find(name)
		if !ok {
			return errors.NewValidationError(name, "no such transformer", ct.names())
		}
		if err := nt.Transformer.SetParams(p); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with cloned transformers.
func (ct *ColumnTransformer) Clone() model.SKLearnCompatible {
	transformers := make([]NamedTransformer, len(ct.transformers))
	for i, nt := range ct.transformers {
		transformers[i] = NamedTransformer{
			Name:        nt.Name,
			Transformer: nt.Transformer.Clone().(TableTransformer),
			Columns:     append([]string(nil), nt.Columns...),
		}
	}
	return NewColumnTransformer(transformers, WithRemainder(ct.remainder))
}

func (ct *ColumnTransformer) find(name string) (NamedTransformer, bool) {
	for _, nt := range ct.transformers {
		if nt.Name == name {
			return nt, true
		}
	}
	return NamedTransformer{}, false
}

func (ct *ColumnTransformer) names() []string {
	names := make([]string, len(ct.transformers))
	for i, nt := range ct.transformers {
		names[i] = nt.Name
	}
	return names
}

type transformerStateJSON struct {
	Name    string          `json:"name"`
	Columns []string        `json:"columns"`
	State   json.RawMessage `json:"state,omitempty"`
}

type columnTransformerJSON struct {
	Remainder        string                 `json:"remainder"`
	RemainderColumns []string               `json:"remainder_columns"`
	FeatureNames     []string               `json:"feature_names_out"`
	Transformers     []transformerStateJSON `json:"transformers"`
}

// MarshalJSON encodes the fitted state of every transformer.
func (ct *ColumnTransformer) MarshalJSON() ([]byte, error) {
	if err := ct.state.RequireFitted("ColumnTransformer", "MarshalJSON"); err != nil {
		return nil, err
	}
	out := columnTransformerJSON{
		Remainder:        ct.remainder,
		RemainderColumns: ct.remainderColumns,
		FeatureNames:     ct.featureNames,
	}
	for _, nt := range ct.transformers {
		ts := transformerStateJSON{Name: nt.Name, Columns: nt.Columns}
		if len(nt.Columns) > 0 {
			state, err := json.Marshal(nt.Transformer)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to encode transformer %s", nt.Name)
			}
			ts.State = state
		}
		out.Transformers = append(out.Transformers, ts)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a fitted state into a ColumnTransformer built with
// the same transformer names. Column groups are taken from the data.
func (ct *ColumnTransformer) UnmarshalJSON(data []byte) error {
	var in columnTransformerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode ColumnTransformer state")
	}
	if len(in.Transformers) != len(ct.transformers) {
		return errors.NewDimensionError("ColumnTransformer.UnmarshalJSON", len(ct.transformers), len(in.Transformers), 1)
	}
	for i, ts := range in.Transformers {
		nt := &ct.transformers[i]
		if nt.Name != ts.Name {
			return errors.NewValidationError("name",
				fmt.Sprintf("expected transformer %s at position %d", nt.Name, i), ts.Name)
		}
		nt.Columns = ts.Columns
		if len(ts.State) == 0 {
			continue
		}
		if err := json.Unmarshal(ts.State, nt.Transformer); err != nil {
			return errors.Wrapf(err, "failed to restore transformer %s", nt.Name)
		}
	}
	if ct.state == nil {
		ct.state = model.NewStateManager()
	}
	ct.remainder = in.Remainder
	ct.remainderColumns = in.RemainderColumns
	ct.featureNames = in.FeatureNames
	ct.state.SetFitted()
	return nil
}

func selectColumns(df dataframe.DataFrame, columns []string) (dataframe.DataFrame, error) {
	have := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		have[n] = true
	}
	for _, c := range columns {
		if !have[c] {
			return df, errors.NewValidationError(c, "column seen during fit is missing", df.Names())
		}
	}
	sub := df.Select(columns)
	if sub.Err != nil {
		return df, errors.WithStack(sub.Err)
	}
	return sub, nil
}

// parallelThreshold is the cell count above which columns are filled concurrently.
const parallelThreshold = 1 << 16

// NumericMatrix copies the numeric columns of df into a dense matrix in
// column order. Non-numeric columns and missing values are errors.
func NumericMatrix(df dataframe.DataFrame) (*mat.Dense, error) {
	rows, cols := df.Nrow(), df.Ncol()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("NumericMatrix", "empty data", errors.ErrEmptyData)
	}
	names := df.Names()
	values := make([][]float64, cols)
	for j, n := range names {
		s := df.Col(n)
		switch s.Type() {
		case series.Int, series.Float, series.Bool:
		default:
			return nil, errors.NewValidationError(n, "column must be numeric", s.Type())
		}
		values[j] = s.Float()
		for i, v := range values[j] {
			if v != v {
				return nil, errors.NewValidationError(n, fmt.Sprintf("missing value in row %d", i), nil)
			}
		}
	}

	result := mat.NewDense(rows, cols, nil)
	threshold := parallelThreshold / rows
	parallel.ParallelizeWithThreshold(cols, threshold, func(start, end int) {
		for j := start; j < end; j++ {
			for i, v := range values[j] {
				result.Set(i, j, v)
			}
		}
	})
	return result, nil
}

func hstack(rows int, blocks []*mat.Dense) *mat.Dense {
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	result := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		result.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return result
}

func (ct *ColumnTransformer) String() string {
	parts := make([]string, len(ct.transformers))
	for i, nt := range ct.transformers {
		parts[i] = fmt.Sprintf("('%s', %v, %v)", nt.Name, nt.Transformer, nt.Columns)
	}
	return fmt.Sprintf("ColumnTransformer(transformers=[%s], remainder='%s')", strings.Join(parts, ", "), ct.remainder)
}
