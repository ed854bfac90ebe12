package model_selection

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
)

// Estimator is a table-in, vector-out model such as pipeline.Pipeline.
type Estimator interface {
	model.SKLearnCompatible

	Fit(X dataframe.DataFrame, y mat.Matrix) error
	Predict(X dataframe.DataFrame) (mat.Matrix, error)
}

// CandidateResult holds the cross-validation outcome of one parameter
// combination.
type CandidateResult struct {
	Params        map[string]interface{} `json:"params"`
	SplitScores   []Score                `json:"split_test_scores"`
	MeanTestScore Score                  `json:"mean_test_score"`
	StdTestScore  Score                  `json:"std_test_score"`
	RankTestScore int                    `json:"rank_test_score"`
	MeanFitTime   float64                `json:"mean_fit_time"`
}

// GridSearchCV はscikit-learn互換のグリッドサーチ
//
// Every (candidate, fold) pair is fitted on its own clone of the estimator,
// concurrently and bounded by NJobs. A fit that fails scores NaN and logs a
// FitFailedWarning. The best candidate is refitted on the full data.
type GridSearchCV struct {
	state *model.StateManager

	estimator Estimator
	paramGrid ParamGrid
	cv        *KFold
	scoring   string
	nJobs     int

	// 学習結果
	cvResults_     []CandidateResult
	bestIndex_     int
	bestParams_    map[string]interface{}
	bestScore_     float64
	bestEstimator_ Estimator
	refitTime_     float64
}

// GridSearchOption は設定オプション
type GridSearchOption func(*GridSearchCV)

// WithCV sets the number of unshuffled folds (default 5).
func WithCV(nSplits int) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.cv = NewKFold(nSplits, false, 0)
	}
}

// WithSplitter sets a custom KFold splitter.
func WithSplitter(cv *KFold) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.cv = cv
	}
}

// WithScoring selects the scorer by name (default "neg_mean_absolute_error").
func WithScoring(name string) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.scoring = name
	}
}

// WithNJobs bounds concurrent fits; -1 uses every CPU.
func WithNJobs(n int) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.nJobs = n
	}
}

// NewGridSearchCV creates an unfitted search over paramGrid.
func NewGridSearchCV(estimator Estimator, paramGrid ParamGrid, options ...GridSearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		state:     model.NewStateManager(),
		estimator: estimator,
		paramGrid: paramGrid,
		cv:        NewKFold(5, false, 0),
		scoring:   "neg_mean_absolute_error",
		nJobs:     1,
	}
	for _, opt := range options {
		opt(gs)
	}
	return gs
}

func (gs *GridSearchCV) workers() int {
	switch {
	case gs.nJobs < 0:
		return runtime.NumCPU()
	case gs.nJobs == 0:
		return 1
	default:
		return gs.nJobs
	}
}

type foldData struct {
	XTrain, XTest dataframe.DataFrame
	yTrain, yTest *mat.Dense
}

func subsetRows(y mat.Matrix, indices []int) *mat.Dense {
	_, cols := y.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, y.At(idx, j))
		}
	}
	return out
}

// Fit runs the search with a background context.
func (gs *GridSearchCV) Fit(X dataframe.DataFrame, y mat.Matrix) error {
	return gs.FitContext(context.Background(), X, y)
}

// FitContext evaluates every candidate on every fold, ranks the candidates
// by mean score and refits the best one on X and y.
func (gs *GridSearchCV) FitContext(ctx context.Context, X dataframe.DataFrame, y mat.Matrix) error {
	logger := log.GetLoggerWithName("GridSearchCV")

	scorer, err := GetScorer(gs.scoring)
	if err != nil {
		return err
	}
	candidates, err := gs.paramGrid.Candidates()
	if err != nil {
		return err
	}
	nSamples := X.Nrow()
	if r, c := y.Dims(); r != nSamples || c != 1 {
		return errors.NewDimensionError("GridSearchCV.Fit", nSamples, r, 0)
	}
	folds, err := gs.cv.Split(nSamples)
	if err != nil {
		return err
	}

	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			XTrain: X.Subset(f.TrainIndices),
			XTest:  X.Subset(f.TestIndices),
			yTrain: subsetRows(y, f.TrainIndices),
			yTest:  subsetRows(y, f.TestIndices),
		}
		if data[i].XTrain.Err != nil {
			return errors.WithStack(data[i].XTrain.Err)
		}
		if data[i].XTest.Err != nil {
			return errors.WithStack(data[i].XTest.Err)
		}
	}

	nFolds := len(folds)
	logger.Info("Fitting folds for each candidate",
		log.FoldsKey, nFolds,
		log.CandidatesKey, len(candidates),
		log.FitsKey, nFolds*len(candidates),
		log.ScoringKey, gs.scoring)
	start := time.Now()

	scores := make([][]float64, len(candidates))
	fitTimes := make([][]float64, len(candidates))
	for i := range candidates {
		scores[i] = make([]float64, nFolds)
		fitTimes[i] = make([]float64, nFolds)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gs.workers())
	for ci := range candidates {
		for fi := range data {
			ci, fi := ci, fi
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				score, err := gs.fitAndScore(candidates[ci], data[fi], scorer)
				fitTimes[ci][fi] = time.Since(t0).Seconds()
				if err != nil {
					errors.Warn(errors.NewFitFailedWarning(candidates[ci], fi, err))
					scores[ci][fi] = math.NaN()
					return nil
				}
				scores[ci][fi] = score
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "grid search cancelled")
	}

	results, failed := summarize(candidates, scores, fitTimes)
	if failed == len(candidates)*nFolds {
		return errors.Wrapf(errors.ErrAllFitsFailed, "all %d fits failed", failed)
	}
	best := 0
	for i, r := range results {
		if r.RankTestScore == 1 {
			best = i
			break
		}
	}

	logger.Info("Cross-validation finished",
		log.FailedFitsKey, failed,
		log.DurationMsKey, time.Since(start).Milliseconds())

	refitStart := time.Now()
	bestEstimator := gs.estimator.Clone().(Estimator)
	if err := bestEstimator.SetParams(candidates[best]); err != nil {
		return err
	}
	if err := bestEstimator.Fit(X, y); err != nil {
		return errors.Wrapf(err, "refit with %s failed", FormatParams(candidates[best]))
	}

	gs.cvResults_ = results
	gs.bestIndex_ = best
	gs.bestParams_ = candidates[best]
	gs.bestScore_ = float64(results[best].MeanTestScore)
	gs.bestEstimator_ = bestEstimator
	gs.refitTime_ = time.Since(refitStart).Seconds()
	gs.state.SetDimensions(X.Ncol(), nSamples)
	gs.state.SetFitted()

	logger.Info("Best candidate refitted",
		log.HyperParamsKey, FormatParams(gs.bestParams_),
		log.ScoreKey, gs.bestScore_)
	return nil
}

func (gs *GridSearchCV) fitAndScore(params map[string]interface{}, d foldData, scorer Scorer) (score float64, err error) {
	defer errors.Recover(&err, "GridSearchCV.fitAndScore")

	est := gs.estimator.Clone().(Estimator)
	if err := est.SetParams(params); err != nil {
		return 0, err
	}
	if err := est.Fit(d.XTrain, d.yTrain); err != nil {
		return 0, err
	}
	pred, err := est.Predict(d.XTest)
	if err != nil {
		return 0, err
	}
	score, err = scorer(d.yTest, pred)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) {
		return 0, errors.NewValueError("GridSearchCV.fitAndScore", "score is NaN")
	}
	return score, nil
}

// summarize computes mean, population std and min-method ranks. A candidate
// with any NaN split has a NaN mean and shares the last rank.
func summarize(candidates []map[string]interface{}, scores, fitTimes [][]float64) ([]CandidateResult, int) {
	results := make([]CandidateResult, len(candidates))
	failed := 0
	keys := make([]float64, len(candidates))

	for i := range candidates {
		split := make([]Score, len(scores[i]))
		var sum, timeSum float64
		for f, s := range scores[i] {
			split[f] = Score(s)
			sum += s
			timeSum += fitTimes[i][f]
			if math.IsNaN(s) {
				failed++
			}
		}
		n := float64(len(scores[i]))
		mean := sum / n
		var ss float64
		for _, s := range scores[i] {
			ss += (s - mean) * (s - mean)
		}
		std := math.Sqrt(ss / n)

		results[i] = CandidateResult{
			Params:        candidates[i],
			SplitScores:   split,
			MeanTestScore: Score(mean),
			StdTestScore:  Score(std),
			MeanFitTime:   timeSum / n,
		}
		keys[i] = mean
		if math.IsNaN(mean) {
			keys[i] = math.Inf(-1)
		}
	}

	for i := range results {
		rank := 1
		for j := range results {
			if keys[j] > keys[i] {
				rank++
			}
		}
		results[i].RankTestScore = rank
	}
	return results, failed
}

// Predict predicts with the refitted best estimator.
func (gs *GridSearchCV) Predict(X dataframe.DataFrame) (mat.Matrix, error) {
	if err := gs.state.RequireFitted("GridSearchCV", "Predict"); err != nil {
		return nil, err
	}
	return gs.bestEstimator_.Predict(X)
}

// Score rates the best estimator on X and y with the search scorer.
func (gs *GridSearchCV) Score(X dataframe.DataFrame, y mat.Matrix) (float64, error) {
	scorer, err := GetScorer(gs.scoring)
	if err != nil {
		return 0, err
	}
	pred, err := gs.Predict(X)
	if err != nil {
		return 0, err
	}
	return scorer(y, pred)
}

// IsFitted は学習済みかどうかを返す
func (gs *GridSearchCV) IsFitted() bool { return gs.state.IsFitted() }

// CVResults returns one entry per candidate in grid order.
func (gs *GridSearchCV) CVResults() []CandidateResult { return gs.cvResults_ }

// BestIndex returns the grid position of the best candidate.
func (gs *GridSearchCV) BestIndex() int { return gs.bestIndex_ }

// BestParams returns the parameters of the best candidate.
func (gs *GridSearchCV) BestParams() map[string]interface{} { return gs.bestParams_ }

// BestScore returns the mean cross-validated score of the best candidate.
func (gs *GridSearchCV) BestScore() float64 { return gs.bestScore_ }

// BestEstimator returns the estimator refitted on the full data.
func (gs *GridSearchCV) BestEstimator() Estimator { return gs.bestEstimator_ }

// RefitTime returns the seconds spent refitting the best candidate.
func (gs *GridSearchCV) RefitTime() float64 { return gs.refitTime_ }

// NSplits returns the number of folds.
func (gs *GridSearchCV) NSplits() int { return gs.cv.GetNSplits() }

// Scoring returns the scorer name.
func (gs *GridSearchCV) Scoring() string { return gs.scoring }
