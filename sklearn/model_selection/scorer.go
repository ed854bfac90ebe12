package model_selection

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/metrics"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// Scorer rates predictions; greater is better.
type Scorer func(yTrue, yPred mat.Matrix) (float64, error)

func negate(fn func(yTrue, yPred mat.Matrix) (float64, error)) Scorer {
	return func(yTrue, yPred mat.Matrix) (float64, error) {
		v, err := fn(yTrue, yPred)
		return -v, err
	}
}

var scorers = map[string]Scorer{
	"neg_mean_absolute_error":   metrics.NegMeanAbsoluteError,
	"neg_mean_squared_error":    negate(metrics.MSE),
	"neg_median_absolute_error": negate(metrics.MedianAbsoluteError),
	"r2":                        metrics.R2Score,
}

// GetScorer returns the scorer registered under name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer", name)
	}
	return s, nil
}

// ScorerNames lists the available scorers in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Score is a cross-validation score. NaN marks a failed fit and is
// encoded as JSON null.
type Score float64

// MarshalJSON encodes NaN as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(s)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(s))
}

// UnmarshalJSON decodes null as NaN.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Score(v)
	return nil
}
