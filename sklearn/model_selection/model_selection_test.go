package model_selection

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// constantEstimator predicts c for every row. mode "error" and "panic"
// make Fit fail.
type constantEstimator struct {
	c      float64
	mode   string
	fitted bool
}

func (e *constantEstimator) GetParams() map[string]interface{} {
	return map[string]interface{}{"c": e.c, "mode": e.mode}
}

func (e *constantEstimator) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "c":
			switch c := v.(type) {
			case int:
				e.c = float64(c)
			case float64:
				e.c = c
			default:
				return errors.NewValidationError(k, "must be numeric", v)
			}
		case "mode":
			e.mode = v.(string)
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return nil
}

func (e *constantEstimator) Clone() model.SKLearnCompatible {
	return &constantEstimator{c: e.c, mode: e.mode}
}

func (e *constantEstimator) Fit(X dataframe.DataFrame, y mat.Matrix) error {
	switch e.mode {
	case "error":
		return errors.New("fit refused")
	case "panic":
		panic("fit exploded")
	}
	e.fitted = true
	return nil
}

func (e *constantEstimator) Predict(X dataframe.DataFrame) (mat.Matrix, error) {
	if !e.fitted {
		return nil, errors.NewNotFittedError("constantEstimator", "Predict")
	}
	out := mat.NewDense(X.Nrow(), 1, nil)
	for i := 0; i < X.Nrow(); i++ {
		out.Set(i, 0, e.c)
	}
	return out, nil
}

func (e *constantEstimator) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{"c": e.c})
}

func (e *constantEstimator) UnmarshalJSON(data []byte) error {
	var s map[string]float64
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	e.c = s["c"]
	e.fitted = true
	return nil
}

func table(n int) (dataframe.DataFrame, *mat.Dense) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 3
	}
	return dataframe.New(series.New(x, series.Float, "x")), mat.NewDense(n, 1, y)
}

func captureWarnings(t *testing.T) func() []error {
	t.Helper()
	var (
		mu       sync.Mutex
		warnings []error
	)
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), warnings...)
	}
}

func TestKFoldSplit(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(10)
	if err != nil {
		t.Fatal(err)
	}
	wantTest := [][]int{{0, 1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	for i, f := range folds {
		if !reflect.DeepEqual(f.TestIndices, wantTest[i]) {
			t.Errorf("fold %d test = %v, want %v", i, f.TestIndices, wantTest[i])
		}
		if len(f.TrainIndices)+len(f.TestIndices) != 10 {
			t.Errorf("fold %d does not cover every row", i)
		}
		for _, tr := range f.TrainIndices {
			for _, te := range f.TestIndices {
				if tr == te {
					t.Errorf("fold %d: row %d is in both train and test", i, tr)
				}
			}
		}
	}

	shuffled, err := NewKFold(4, true, 42).Split(9)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]int{}
	for _, f := range shuffled {
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	if len(seen) != 9 {
		t.Errorf("shuffled folds cover %d rows", len(seen))
	}

	if _, err := NewKFold(10, false, 0).Split(9); err == nil {
		t.Error("expected error for more folds than rows")
	}
	if _, err := NewKFold(1, false, 0).Split(9); err == nil {
		t.Error("expected error for a single fold")
	}
}

func TestParamGridCandidates(t *testing.T) {
	grid := ParamGrid{
		"model__fit_intercept": {true, false},
		"k_best__k":            {1, 2, 3},
	}
	got, err := grid.Candidates()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 || grid.Len() != 6 {
		t.Fatalf("expected 6 candidates, got %d", len(got))
	}

	want := []struct {
		k         int
		intercept bool
	}{{1, true}, {1, false}, {2, true}, {2, false}, {3, true}, {3, false}}
	for i, w := range want {
		if got[i]["k_best__k"] != w.k || got[i]["model__fit_intercept"] != w.intercept {
			t.Errorf("candidate %d = %v", i, got[i])
		}
	}
	if s := FormatParams(got[1]); s != "k_best__k=1, model__fit_intercept=false" {
		t.Errorf("FormatParams = %q", s)
	}

	if _, err := (ParamGrid{}).Candidates(); err == nil {
		t.Error("expected error for empty grid")
	}
	if _, err := (ParamGrid{"k": {}}).Candidates(); err == nil {
		t.Error("expected error for empty value list")
	}
}

func TestGridSearchCVSelectsBest(t *testing.T) {
	X, y := table(12)
	gs := NewGridSearchCV(&constantEstimator{}, ParamGrid{"c": {1, 3, 5}},
		WithCV(4), WithNJobs(-1))

	if err := gs.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gs.BestIndex() != 1 || gs.BestParams()["c"] != 3 || gs.BestScore() != 0 {
		t.Errorf("best index=%d params=%v score=%v", gs.BestIndex(), gs.BestParams(), gs.BestScore())
	}

	ranks := []int{}
	for _, r := range gs.CVResults() {
		ranks = append(ranks, r.RankTestScore)
		if len(r.SplitScores) != 4 {
			t.Errorf("expected 4 split scores, got %d", len(r.SplitScores))
		}
	}
	if !reflect.DeepEqual(ranks, []int{2, 1, 2}) {
		t.Errorf("ranks = %v", ranks)
	}
	if got := float64(gs.CVResults()[0].MeanTestScore); got != -2 {
		t.Errorf("mean score for c=1 is %v", got)
	}

	pred, err := gs.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 3 {
		t.Errorf("refitted estimator predicts %v", pred.At(0, 0))
	}
}

func TestGridSearchCVFailedFits(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := table(10)
	gs := NewGridSearchCV(&constantEstimator{c: 3}, ParamGrid{"mode": {"error", "ok", "panic"}},
		WithCV(5), WithNJobs(2))

	if err := gs.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gs.BestParams()["mode"] != "ok" {
		t.Errorf("best params = %v", gs.BestParams())
	}

	results := gs.CVResults()
	for _, i := range []int{0, 2} {
		if !math.IsNaN(float64(results[i].MeanTestScore)) {
			t.Errorf("candidate %d mean = %v, want NaN", i, results[i].MeanTestScore)
		}
		if results[i].RankTestScore != 2 {
			t.Errorf("candidate %d rank = %d, want 2", i, results[i].RankTestScore)
		}
	}

	got := warnings()
	if len(got) != 10 {
		t.Fatalf("expected 10 FitFailedWarnings, got %d", len(got))
	}
	panics := 0
	for _, w := range got {
		var fw *errors.FitFailedWarning
		if !errors.As(w, &fw) {
			t.Fatalf("unexpected warning %T", w)
		}
		var pe *errors.PanicError
		if errors.As(fw.Err, &pe) {
			panics++
		}
	}
	if panics != 5 {
		t.Errorf("expected 5 recovered panics, got %d", panics)
	}
}

func TestGridSearchCVAllFitsFail(t *testing.T) {
	captureWarnings(t)
	X, y := table(6)
	gs := NewGridSearchCV(&constantEstimator{mode: "error"}, ParamGrid{"c": {1, 2}}, WithCV(3))

	err := gs.Fit(X, y)
	if !errors.Is(err, errors.ErrAllFitsFailed) {
		t.Errorf("expected ErrAllFitsFailed, got %v", err)
	}
	if _, err := gs.Predict(X); err == nil {
		t.Error("Predict should fail after a failed search")
	}
}

func TestGridSearchCVCancelled(t *testing.T) {
	X, y := table(6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gs := NewGridSearchCV(&constantEstimator{}, ParamGrid{"c": {1, 2}}, WithCV(3))
	if err := gs.FitContext(ctx, X, y); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestGridSearchCVValidation(t *testing.T) {
	X, y := table(6)

	if err := NewGridSearchCV(&constantEstimator{}, ParamGrid{"c": {1}}, WithScoring("accuracy")).Fit(X, y); err == nil {
		t.Error("expected error for unknown scorer")
	}
	if err := NewGridSearchCV(&constantEstimator{}, ParamGrid{"c": {1}}, WithCV(7)).Fit(X, y); err == nil {
		t.Error("expected error for more folds than rows")
	}
	if err := NewGridSearchCV(&constantEstimator{}, ParamGrid{"c": {1}}).Fit(X, mat.NewDense(5, 1, nil)); err == nil {
		t.Error("expected error for misaligned target")
	}
}

func TestGridSearchCVDeterministicAcrossWorkers(t *testing.T) {
	X, y := table(20)
	grid := ParamGrid{"c": {0, 1, 2, 3, 4, 5}}

	serial := NewGridSearchCV(&constantEstimator{}, grid, WithCV(5), WithNJobs(1))
	parallel := NewGridSearchCV(&constantEstimator{}, grid, WithCV(5), WithNJobs(-1))
	if err := serial.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := parallel.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for i := range serial.CVResults() {
		if !reflect.DeepEqual(serial.CVResults()[i].SplitScores, parallel.CVResults()[i].SplitScores) {
			t.Errorf("candidate %d differs between worker counts", i)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	captureWarnings(t)
	X, y := table(10)
	gs := NewGridSearchCV(&constantEstimator{}, ParamGrid{"c": {2, 3}, "mode": {"ok", "error"}}, WithCV(5))
	if err := gs.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "models", "model.pkl.gz")
	saved, err := Save(path, gs)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.RunID == "" {
		t.Error("missing run id")
	}

	loaded, artifact, err := Load(path, &constantEstimator{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if artifact.RunID != saved.RunID || artifact.FormatVersion != ArtifactFormatVersion {
		t.Errorf("artifact header = %+v", artifact)
	}
	if loaded.BestIndex() != gs.BestIndex() || loaded.BestScore() != gs.BestScore() || loaded.NSplits() != 5 {
		t.Errorf("loaded search differs: index=%d score=%v", loaded.BestIndex(), loaded.BestScore())
	}
	if got := loaded.CVResults()[1].MeanTestScore; !math.IsNaN(float64(got)) {
		t.Errorf("NaN score did not survive: %v", got)
	}

	want, _ := gs.Predict(X)
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(got, want) {
		t.Error("loaded model predicts differently")
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.pkl.gz")
	if err := model.SaveArtifact(path, Artifact{FormatVersion: "0", Scoring: "r2"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path, &constantEstimator{}); err == nil {
		t.Error("expected error for unsupported version")
	}
}
