// Package config holds the fixed settings of a training run. A Config value
// is built once at process start with Default and passed down; nothing reads
// flags or environment variables.
package config

import (
	"slices"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
	"github.com/YuminosukeSato/vehicleprice/sklearn/model_selection"
)

// Config describes where data lives and how the model is searched.
type Config struct {
	// Input splits (zip-compressed CSV with a header row).
	TrainPath string
	TestPath  string

	// Outputs.
	ModelPath   string
	MetricsPath string
	// PlotPath is the predicted-vs-actual PNG; empty disables plotting.
	PlotPath string

	// Feature engineering.
	CurrentYear  int
	YearColumn   string
	AgeColumn    string
	DropColumns  []string
	TargetColumn string

	// CategoricalColumns are one-hot encoded; every other feature column is
	// min-max scaled.
	CategoricalColumns []string
	// HandleUnknown is the OneHotEncoder policy while searching. With
	// "error" a validation fold holding a category unseen in its training
	// folds fails and scores NaN.
	HandleUnknown string
	// EvalHandleUnknown replaces HandleUnknown on the refitted model before
	// it is saved and used to predict the train and test splits.
	EvalHandleUnknown string

	// Search.
	CVFolds       int
	KGrid         []int
	InterceptGrid []bool
	Scoring       string
	// NJobs bounds concurrent fits; -1 uses every CPU.
	NJobs int

	LogLevel string
}

// Default returns the settings of the used-vehicle price model.
func Default() Config {
	return Config{
		TrainPath:   "files/input/train_data.csv.zip",
		TestPath:    "files/input/test_data.csv.zip",
		ModelPath:   "files/models/model.pkl.gz",
		MetricsPath: "files/output/metrics.json",
		PlotPath:    "files/plots/predictions.png",

		CurrentYear:  2021,
		YearColumn:   "Year",
		AgeColumn:    "Age",
		DropColumns:  []string{"Year", "Car_Name"},
		TargetColumn: "Present_Price",

		CategoricalColumns: []string{"Fuel_Type", "Selling_type", "Transmission"},
		HandleUnknown:      "error",
		EvalHandleUnknown:  "ignore",

		CVFolds:       10,
		KGrid:         []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		InterceptGrid: []bool{true, false},
		Scoring:       "neg_mean_absolute_error",
		NJobs:         -1,

		LogLevel: "info",
	}
}

// Validate reports the first setting that cannot drive a run.
func (c Config) Validate() error {
	paths := map[string]string{
		"TrainPath":   c.TrainPath,
		"TestPath":    c.TestPath,
		"ModelPath":   c.ModelPath,
		"MetricsPath": c.MetricsPath,
	}
	for _, name := range []string{"TrainPath", "TestPath", "ModelPath", "MetricsPath"} {
		if paths[name] == "" {
			return errors.NewValidationError(name, "path must not be empty", paths[name])
		}
	}
	if c.TargetColumn == "" || c.YearColumn == "" || c.AgeColumn == "" {
		return errors.NewValidationError("columns", "target, year and age column names are required",
			[]string{c.TargetColumn, c.YearColumn, c.AgeColumn})
	}
	if c.CVFolds < 2 {
		return errors.NewValidationError("CVFolds", "at least 2 folds are required", c.CVFolds)
	}
	if len(c.KGrid) == 0 {
		return errors.NewValidationError("KGrid", "grid must not be empty", c.KGrid)
	}
	for _, k := range c.KGrid {
		if k < 1 {
			return errors.NewValidationError("KGrid", "k must be positive", k)
		}
	}
	if len(c.InterceptGrid) == 0 {
		return errors.NewValidationError("InterceptGrid", "grid must not be empty", c.InterceptGrid)
	}
	for name, policy := range map[string]string{"HandleUnknown": c.HandleUnknown, "EvalHandleUnknown": c.EvalHandleUnknown} {
		if policy != "error" && policy != "ignore" {
			return errors.NewValidationError(name, "must be 'error' or 'ignore'", policy)
		}
	}
	if !slices.Contains(model_selection.ScorerNames(), c.Scoring) {
		return errors.NewValidationError("Scoring", "unsupported scorer", c.Scoring)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("LogLevel", err.Error(), c.LogLevel)
	}
	return nil
}
