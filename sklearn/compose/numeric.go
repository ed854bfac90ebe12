package compose

import (
	"encoding/json"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// MatrixTransformer is a matrix transformer whose hyperparameters can be
// cloned and set, such as preprocessing.MinMaxScaler.
type MatrixTransformer interface {
	model.Transformer
	model.SKLearnCompatible
}

// numericColumns adapts a MatrixTransformer to numeric frame columns.
type numericColumns struct {
	transformer MatrixTransformer
	columns     []string
}

// Numeric wraps t so it consumes numeric data frame columns. Output feature
// names are the input column names.
func Numeric(t MatrixTransformer) TableTransformer {
	return &numericColumns{transformer: t}
}

func (n *numericColumns) Fit(df dataframe.DataFrame) error {
	X, err := NumericMatrix(df)
	if err != nil {
		return err
	}
	if err := n.transformer.Fit(X); err != nil {
		return err
	}
	n.columns = df.Names()
	return nil
}

func (n *numericColumns) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	if n.columns == nil {
		return nil, errors.NewNotFittedError("Numeric", "Transform")
	}
	sub, err := selectColumns(df, n.columns)
	if err != nil {
		return nil, err
	}
	X, err := NumericMatrix(sub)
	if err != nil {
		return nil, err
	}
	out, err := n.transformer.Transform(X)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out), nil
}

func (n *numericColumns) FeatureNamesOut() []string {
	return append([]string(nil), n.columns...)
}

func (n *numericColumns) GetParams() map[string]interface{} {
	return n.transformer.GetParams()
}

func (n *numericColumns) SetParams(params map[string]interface{}) error {
	return n.transformer.SetParams(params)
}

func (n *numericColumns) Clone() model.SKLearnCompatible {
	return &numericColumns{transformer: n.transformer.Clone().(MatrixTransformer)}
}

type numericColumnsJSON struct {
	Columns []string        `json:"columns"`
	State   json.RawMessage `json:"state"`
}

func (n *numericColumns) MarshalJSON() ([]byte, error) {
	state, err := json.Marshal(n.transformer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(numericColumnsJSON{Columns: n.columns, State: state})
}

func (n *numericColumns) UnmarshalJSON(data []byte) error {
	var in numericColumnsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode numeric column state")
	}
	if err := json.Unmarshal(in.State, n.transformer); err != nil {
		return err
	}
	n.columns = in.Columns
	return nil
}

func (n *numericColumns) String() string {
	return fmt.Sprint(n.transformer)
}
