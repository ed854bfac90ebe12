// Package vehicleprice trains a linear regression model that predicts the
// Present_Price of used vehicles from tabular listing data.
//
// The project offers a small scikit-learn-like API on top of gonum and gota
// and uses it to build one model:
//
//	ColumnTransformer(num: MinMaxScaler, cat: OneHotEncoder, remainder: passthrough)
//	  -> SelectKBest(f_regression, k)
//	  -> LinearRegression(fit_intercept)
//
// k and fit_intercept are chosen by a 10-fold grid search scored by negative
// mean absolute error.
//
// # Quick Start
//
// Place the zip-compressed train and test CSV files under files/input and run
//
//	go run ./cmd/train
//
// The fitted search is written to files/models/model.pkl.gz and one metrics
// line per split to files/output/metrics.json:
//
//	{"type":"metrics","dataset":"train","r2":0.97,"mse":0.9,"mad":0.4}
//	{"type":"metrics","dataset":"test","r2":0.95,"mse":1.1,"mad":0.5}
//
// A saved model is reused without retraining:
//
//	search, _, err := pricing.LoadModel(config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	predictions, err := search.Predict(X)
//
// # Packages
//
//   - dataset: CSV/zip loading, Age derivation, feature/target split
//   - preprocessing: MinMaxScaler, OneHotEncoder
//   - sklearn/compose: ColumnTransformer over named data frame columns
//   - sklearn/feature_selection: f_regression, SelectKBest
//   - sklearn/linear_model: least-squares LinearRegression
//   - sklearn/pipeline: preprocessor and matrix steps as one estimator
//   - sklearn/model_selection: KFold, ParamGrid, GridSearchCV, Save/Load
//   - metrics: R², MSE, MAE, median absolute error
//   - report: metrics JSON lines and prediction plots
//   - pricing: the price pipeline and the end-to-end Run
//   - core/model: estimator interfaces, fitted state, artifact codec
//   - core/parallel: parallel processing utilities
//   - pkg/config, pkg/errors, pkg/log: settings, structured errors, logging
//
// # Performance
//
// Grid search fits every (candidate, fold) pair concurrently, bounded by
// Config.NJobs. Per-column work such as F statistics is split across CPU
// cores for wide inputs.
package vehicleprice
