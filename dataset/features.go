package dataset

import (
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/pkg/config"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// EngineerFeatures adds the integer column cfg.AgeColumn computed as
// cfg.CurrentYear - cfg.YearColumn and drops cfg.DropColumns. The input
// frame is left untouched.
func EngineerFeatures(df dataframe.DataFrame, cfg config.Config) (dataframe.DataFrame, error) {
	if err := requireColumns(df, append([]string{cfg.YearColumn}, cfg.DropColumns...)...); err != nil {
		return df, err
	}

	years, err := intValues(df.Col(cfg.YearColumn))
	if err != nil {
		return df, err
	}
	age := make([]int, len(years))
	for i, y := range years {
		age[i] = cfg.CurrentYear - y
	}

	out := df.Mutate(series.New(age, series.Int, cfg.AgeColumn))
	if out.Err != nil {
		return df, errors.WithStack(out.Err)
	}
	out = out.Drop(cfg.DropColumns)
	if out.Err != nil {
		return df, errors.WithStack(out.Err)
	}
	return out, nil
}

// SplitXY removes the target column from df and returns it as an n×1
// matrix. Row order is preserved.
func SplitXY(df dataframe.DataFrame, target string) (dataframe.DataFrame, *mat.Dense, error) {
	if err := requireColumns(df, target); err != nil {
		return df, nil, err
	}
	col := df.Col(target)
	switch col.Type() {
	case series.Float, series.Int:
	default:
		return df, nil, errors.NewValidationError(target, "target column must be numeric", col.Type())
	}

	values := col.Float()
	for i, v := range values {
		if math.IsNaN(v) {
			return df, nil, errors.NewValidationError(target, "target column has a missing value", i)
		}
	}

	X := df.Drop([]string{target})
	if X.Err != nil {
		return df, nil, errors.WithStack(X.Err)
	}
	return X, mat.NewDense(len(values), 1, values), nil
}

// CheckSameColumns reports an error unless a and b carry the same set of
// column names. Order may differ.
func CheckSameColumns(a, b dataframe.DataFrame) error {
	inA := make(map[string]bool, a.Ncol())
	for _, name := range a.Names() {
		inA[name] = true
	}
	for _, name := range b.Names() {
		if !inA[name] {
			return errors.NewValidationError(name, "column missing from the training features", b.Names())
		}
		delete(inA, name)
	}
	for _, name := range a.Names() {
		if inA[name] {
			return errors.NewValidationError(name, "column missing from the test features", b.Names())
		}
	}
	return nil
}

// PartitionColumns splits names into the numeric columns, in table order,
// and the declared categorical columns, in declared order.
func PartitionColumns(names, categorical []string) (numeric, cat []string, err error) {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	isCat := make(map[string]bool, len(categorical))
	for _, c := range categorical {
		if !present[c] {
			return nil, nil, errors.NewValidationError(c, "categorical column not found", names)
		}
		if isCat[c] {
			return nil, nil, errors.NewValidationError(c, "categorical column listed twice", categorical)
		}
		isCat[c] = true
		cat = append(cat, c)
	}
	for _, n := range names {
		if !isCat[n] {
			numeric = append(numeric, n)
		}
	}
	return numeric, cat, nil
}

func requireColumns(df dataframe.DataFrame, columns ...string) error {
	have := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		have[n] = true
	}
	for _, c := range columns {
		if !have[c] {
			return errors.NewValidationError(c, "required column not found", df.Names())
		}
	}
	return nil
}

// intValues accepts integer columns and float columns holding whole numbers.
func intValues(s series.Series) ([]int, error) {
	switch s.Type() {
	case series.Int:
		vals, err := s.Int()
		if err != nil {
			return nil, errors.NewValidationError(s.Name, "column has a missing value", err.Error())
		}
		return vals, nil
	case series.Float:
		floats := s.Float()
		vals := make([]int, len(floats))
		for i, f := range floats {
			if math.IsNaN(f) || f != math.Trunc(f) {
				return nil, errors.NewValidationError(s.Name, "column must hold integers", f)
			}
			vals[i] = int(f)
		}
		return vals, nil
	default:
		return nil, errors.NewValidationError(s.Name, "column must hold integers", s.Type())
	}
}
