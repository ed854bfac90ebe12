// Package log defines standard attribute keys for training operations.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so log lines can be filtered by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "LinearRegression", "OneHotEncoder", "Pipeline"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// DatasetKey names the data split ("train", "test").
	DatasetKey = "data.split"

	// PathKey is a file path read or written.
	PathKey = "io.path"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ColumnsKey lists column names.
	ColumnsKey = "data.columns"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// MSEKey records mean squared error.
	MSEKey = "metrics.mse"

	// MADKey records median absolute error.
	MADKey = "metrics.mad"

	// ScoreKey records a cross-validation score.
	ScoreKey = "metrics.score"
)

// Hyperparameter search
const (
	// CandidatesKey is the number of parameter combinations searched.
	CandidatesKey = "search.candidates"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "search.folds"

	// ScoringKey names the scorer used to rank candidates.
	ScoringKey = "search.scoring"

	// FitsKey is the total number of fits (candidates × folds).
	FitsKey = "search.fits"

	// FailedFitsKey counts fits whose score was replaced by NaN.
	FailedFitsKey = "search.failed_fits"

	// HyperParamsKey contains estimator hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RunIDKey identifies a training run and its persisted artifact.
	RunIDKey = "run.id"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseLoading       = "loading"
	PhasePreprocessing = "preprocessing"
	PhaseSearch        = "search"
	PhasePersistence   = "persistence"
	PhaseEvaluation    = "evaluation"
)
