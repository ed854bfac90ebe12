package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/dataset"
	"github.com/YuminosukeSato/vehicleprice/pkg/config"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
	"github.com/YuminosukeSato/vehicleprice/report"
	"github.com/YuminosukeSato/vehicleprice/sklearn/model_selection"
)

// Predictor is anything that predicts a target column from a feature table.
type Predictor interface {
	Predict(X dataframe.DataFrame) (mat.Matrix, error)
}

// Result summarises a training run.
type Result struct {
	Search   *model_selection.GridSearchCV
	Artifact *model_selection.Artifact
	Train    report.Record
	Test     report.Record
}

// Evaluate predicts X with est and scores the predictions against y.
func Evaluate(est Predictor, X dataframe.DataFrame, y mat.Matrix, name string) (report.Record, mat.Matrix, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return report.Record{}, nil, errors.Wrapf(err, "failed to predict %s split", name)
	}
	rec, err := report.NewRecord(name, y, pred)
	if err != nil {
		return report.Record{}, nil, err
	}
	log.GetLoggerWithName("pricing").Info("Evaluated split",
		log.PhaseKey, log.PhaseEvaluation,
		log.DatasetKey, name,
		log.R2ScoreKey, rec.R2,
		log.MSEKey, rec.MSE,
		log.MADKey, rec.MAD)
	return rec, pred, nil
}

const minSplitRows = 2

func prepare(df dataframe.DataFrame, cfg config.Config, name string) (dataframe.DataFrame, *mat.Dense, error) {
	engineered, err := dataset.EngineerFeatures(df, cfg)
	if err != nil {
		return df, nil, errors.Wrapf(err, "%s split", name)
	}
	X, y, err := dataset.SplitXY(engineered, cfg.TargetColumn)
	if err != nil {
		return df, nil, errors.Wrapf(err, "%s split", name)
	}
	// R² needs two rows; checked before anything is written.
	if X.Nrow() < minSplitRows {
		return df, nil, errors.NewValueError("pricing.prepare",
			fmt.Sprintf("%s split has %d rows, at least %d are required", name, X.Nrow(), minSplitRows))
	}
	return X, y, nil
}

// Run trains the price model end to end. The fitted search is saved to
// cfg.ModelPath and the train and test metrics to cfg.MetricsPath. The test
// split is only ever predicted.
func Run(ctx context.Context, cfg config.Config) (*Result, error) {
	logger := log.GetLoggerWithName("pricing")
	start := time.Now()

	logger.Info("Loading data", log.PhaseKey, log.PhaseLoading)
	trainDF, testDF, err := dataset.LoadPair(cfg.TrainPath, cfg.TestPath)
	if err != nil {
		return nil, err
	}

	logger.Info("Preparing features", log.PhaseKey, log.PhasePreprocessing)
	XTrain, yTrain, err := prepare(trainDF, cfg, "train")
	if err != nil {
		return nil, err
	}
	XTest, yTest, err := prepare(testDF, cfg, "test")
	if err != nil {
		return nil, err
	}
	if err := dataset.CheckSameColumns(XTrain, XTest); err != nil {
		return nil, err
	}
	numeric, categorical, err := dataset.PartitionColumns(XTrain.Names(), cfg.CategoricalColumns)
	if err != nil {
		return nil, err
	}
	logger.Debug("Partitioned feature columns",
		"numeric", numeric,
		"categorical", categorical)

	est, err := NewPipeline(cfg, numeric, categorical)
	if err != nil {
		return nil, err
	}
	search := NewSearch(cfg, est)
	logger.Info("Searching hyperparameters",
		log.PhaseKey, log.PhaseSearch,
		log.SamplesKey, XTrain.Nrow(),
		log.FeaturesKey, XTrain.Ncol())
	if err := search.FitContext(ctx, XTrain, yTrain); err != nil {
		return nil, err
	}
	if err := PrepareForEvaluation(cfg, search); err != nil {
		return nil, err
	}

	logger.Info("Saving model", log.PhaseKey, log.PhasePersistence)
	artifact, err := model_selection.Save(cfg.ModelPath, search)
	if err != nil {
		return nil, err
	}

	trainRec, trainPred, err := Evaluate(search, XTrain, yTrain, "train")
	if err != nil {
		return nil, err
	}
	testRec, testPred, err := Evaluate(search, XTest, yTest, "test")
	if err != nil {
		return nil, err
	}
	if err := report.WriteMetrics(cfg.MetricsPath, []report.Record{trainRec, testRec}); err != nil {
		return nil, err
	}
	if err := report.PlotPredictions(cfg.PlotPath,
		report.Series{Name: "train", Actual: yTrain, Predicted: trainPred},
		report.Series{Name: "test", Actual: yTest, Predicted: testPred},
	); err != nil {
		return nil, err
	}

	logger.Info("Training finished",
		log.RunIDKey, artifact.RunID,
		log.HyperParamsKey, model_selection.FormatParams(search.BestParams()),
		log.DurationMsKey, time.Since(start).Milliseconds())

	return &Result{Search: search, Artifact: artifact, Train: trainRec, Test: testRec}, nil
}
