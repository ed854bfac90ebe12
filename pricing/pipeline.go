// Package pricing assembles the used-vehicle price model from the generic
// estimators and runs a complete training: load, feature engineering, grid
// search, persistence and evaluation.
package pricing

import (
	"github.com/YuminosukeSato/vehicleprice/pkg/config"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/preprocessing"
	"github.com/YuminosukeSato/vehicleprice/sklearn/compose"
	"github.com/YuminosukeSato/vehicleprice/sklearn/feature_selection"
	"github.com/YuminosukeSato/vehicleprice/sklearn/linear_model"
	"github.com/YuminosukeSato/vehicleprice/sklearn/model_selection"
	"github.com/YuminosukeSato/vehicleprice/sklearn/pipeline"
)

// Step names of the price pipeline. Grid keys are "<step>__<param>".
const (
	PreprocessorStep = "preprocessor"
	KBestStep        = "k_best"
	ModelStep        = "model"
)

// handleUnknownParam addresses the OneHotEncoder policy inside the pipeline.
const handleUnknownParam = PreprocessorStep + "__cat__handle_unknown"

// NewPipeline builds the unfitted price pipeline
//
//	ColumnTransformer(num: MinMaxScaler, cat: OneHotEncoder, remainder: passthrough)
//	  -> SelectKBest(f_regression) -> LinearRegression
//
// numeric and categorical name the feature columns of each group.
func NewPipeline(cfg config.Config, numeric, categorical []string) (*pipeline.Pipeline, error) {
	pre := compose.NewColumnTransformer([]compose.NamedTransformer{
		{Name: "num", Transformer: compose.Numeric(preprocessing.NewMinMaxScalerDefault()), Columns: numeric},
		{Name: "cat", Transformer: preprocessing.NewOneHotEncoderWithHandleUnknown(cfg.HandleUnknown), Columns: categorical},
	}, compose.WithRemainder(compose.RemainderPassthrough))

	k := 10
	if len(cfg.KGrid) > 0 {
		k = cfg.KGrid[0]
	}
	return pipeline.NewPipeline(PreprocessorStep, pre,
		pipeline.Step{Name: KBestStep, Estimator: feature_selection.NewSelectKBest(feature_selection.FRegression, k)},
		pipeline.Step{Name: ModelStep, Estimator: linear_model.NewLinearRegression()},
	)
}

// ParamGrid returns the searched hyperparameters: the number of selected
// features and whether the regression fits an intercept.
func ParamGrid(cfg config.Config) model_selection.ParamGrid {
	ks := make([]interface{}, len(cfg.KGrid))
	for i, k := range cfg.KGrid {
		ks[i] = k
	}
	intercepts := make([]interface{}, len(cfg.InterceptGrid))
	for i, b := range cfg.InterceptGrid {
		intercepts[i] = b
	}
	return model_selection.ParamGrid{
		KBestStep + "__k":             ks,
		ModelStep + "__fit_intercept": intercepts,
	}
}

// PrepareForEvaluation switches the refitted best estimator of a fitted
// search to cfg.EvalHandleUnknown. Fitted state is kept.
func PrepareForEvaluation(cfg config.Config, search *model_selection.GridSearchCV) error {
	best := search.BestEstimator()
	if best == nil {
		return errors.NewNotFittedError("GridSearchCV", "PrepareForEvaluation")
	}
	return best.SetParams(map[string]interface{}{handleUnknownParam: cfg.EvalHandleUnknown})
}

// NewSearch wraps est in the configured cross-validated grid search.
func NewSearch(cfg config.Config, est model_selection.Estimator) *model_selection.GridSearchCV {
	return model_selection.NewGridSearchCV(est, ParamGrid(cfg),
		model_selection.WithCV(cfg.CVFolds),
		model_selection.WithScoring(cfg.Scoring),
		model_selection.WithNJobs(cfg.NJobs),
	)
}

// LoadModel restores the search saved at cfg.ModelPath. Column groups are
// taken from the stored state.
func LoadModel(cfg config.Config) (*model_selection.GridSearchCV, *model_selection.Artifact, error) {
	template, err := NewPipeline(cfg, nil, cfg.CategoricalColumns)
	if err != nil {
		return nil, nil, err
	}
	return model_selection.Load(cfg.ModelPath, template)
}
