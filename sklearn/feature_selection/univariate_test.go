package feature_selection

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

func TestFRegression(t *testing.T) {
	// columns: noisy positive, constant, exact multiple of y
	X := mat.NewDense(5, 3, []float64{
		1, 7, 2,
		2, 7, 4,
		2, 7, 6,
		5, 7, 8,
		4, 7, 10,
	})
	y := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})

	scores, pValues, err := FRegression(X, y)
	if err != nil {
		t.Fatalf("FRegression failed: %v", err)
	}

	// column 0 has r = sqrt(3)/2, so F = 0.75/0.25*3
	wantF := 9.0
	if math.Abs(scores[0]-wantF) > 1e-9 {
		t.Errorf("F[0] = %v, want %v", scores[0], wantF)
	}
	if pValues[0] <= 0 || pValues[0] >= 0.1 {
		t.Errorf("p[0] = %v, expected a small p-value", pValues[0])
	}

	if scores[1] != 0 || pValues[1] != 1 {
		t.Errorf("constant column: F=%v p=%v, want 0 and 1", scores[1], pValues[1])
	}
	if scores[2] < 1e12 || pValues[2] > 1e-12 {
		t.Errorf("perfect correlation: F=%v p=%v", scores[2], pValues[2])
	}
}

func TestFRegressionErrors(t *testing.T) {
	if _, _, err := FRegression(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2})); err == nil {
		t.Error("expected dimension error")
	}
	if _, _, err := FRegression(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2})); err == nil {
		t.Error("expected error for two samples")
	}
}

func fixedScores(scores ...float64) ScoreFunc {
	return func(X, y mat.Matrix) ([]float64, []float64, error) {
		return scores, make([]float64, len(scores)), nil
	}
}

func TestSelectKBest(t *testing.T) {
	X := mat.NewDense(2, 5, []float64{
		10, 11, 12, 13, 14,
		20, 21, 22, 23, 24,
	})
	y := mat.NewDense(2, 1, []float64{0, 1})

	tests := []struct {
		name    string
		scores  []float64
		k       int
		support []int
	}{
		{"top two", []float64{1, 5, 3, 4, 2}, 2, []int{1, 3}},
		{"later index wins ties", []float64{3, 1, 3, 1, 3}, 2, []int{2, 4}},
		{"k equals n", []float64{1, 2, 3, 4, 5}, 5, []int{0, 1, 2, 3, 4}},
		{"k above n keeps all", []float64{1, 2, 3, 4, 5}, 15, []int{0, 1, 2, 3, 4}},
		{"nan ranks lowest", []float64{math.NaN(), 0, 0, 0, 0}, 4, []int{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelectKBest(fixedScores(tt.scores...), tt.k)
			out, err := s.FitTransform(X, y)
			if err != nil {
				t.Fatalf("FitTransform failed: %v", err)
			}
			got := s.GetSupport()
			if len(got) != len(tt.support) {
				t.Fatalf("support = %v, want %v", got, tt.support)
			}
			for i := range got {
				if got[i] != tt.support[i] {
					t.Fatalf("support = %v, want %v", got, tt.support)
				}
			}
			_, c := out.Dims()
			if c != len(tt.support) {
				t.Errorf("output has %d columns", c)
			}
			for jj, j := range tt.support {
				if out.At(1, jj) != X.At(1, j) {
					t.Errorf("column %d holds %v, want column %d", jj, out.At(1, jj), j)
				}
			}
		})
	}
}

func TestSelectKBestParams(t *testing.T) {
	s := NewSelectKBest(nil, 3)
	if err := s.SetParams(map[string]interface{}{"k": 7}); err != nil || s.K() != 7 {
		t.Errorf("int k: err=%v k=%d", err, s.K())
	}
	if err := s.SetParams(map[string]interface{}{"k": 4.0}); err != nil || s.K() != 4 {
		t.Errorf("float k: err=%v k=%d", err, s.K())
	}
	if err := s.SetParams(map[string]interface{}{"k": 2.5}); err == nil {
		t.Error("expected error for fractional k")
	}
	if err := s.SetParams(map[string]interface{}{"alpha": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}

	clone := s.Clone().(*SelectKBest)
	if clone.K() != 4 || clone.IsFitted() {
		t.Errorf("clone k=%d fitted=%v", clone.K(), clone.IsFitted())
	}

	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
}

func TestSelectKBestStateRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 0, 3,
		2, 0, 1,
		3, 0, 4,
		4, 0, 1,
	})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	s := NewSelectKBest(FRegression, 2)
	want, err := s.FitTransform(X, y)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	restored := NewSelectKBest(FRegression, 0)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	got, err := restored.Transform(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(got, want) || restored.K() != 2 {
		t.Errorf("restored selector differs")
	}
}
