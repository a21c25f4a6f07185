// Package mlkit provides model persistence and model-selection helpers for
// Go machine learning pipelines, with a scikit-learn-like API.
//
// # Features
//
//   - Object store: save any gob-encodable object (fitted estimators,
//     scalers, plain values) to a path, creating parent directories, and load
//     it back with its original type. Files carry a checksum and can be
//     zstd-compressed.
//   - Evaluator: fit an ordered set of named candidate regressors and report
//     their R² on train and test splits, optionally tuning each with
//     cross-validated grid search first.
//   - Estimators: LinearRegression, Ridge, Lasso, DecisionTreeRegressor and
//     KNeighborsRegressor implementing a common capability interface.
//
// # Quick Start
//
//	candidates := evaluation.Candidates{
//	    {Name: "ridge", Estimator: linear_model.NewRidge()},
//	    {Name: "tree", Estimator: tree.NewDecisionTreeRegressor()},
//	}
//	report, err := evaluation.Evaluate(XTrain, yTrain, XTest, yTest, candidates)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Scores())
//
//	if err := model.Save("artifacts/ridge.model", candidates[0].Estimator); err != nil {
//	    log.Fatal(err)
//	}
//
// # Packages
//
//   - core/model: estimator interfaces, fitted-state manager, object store
//   - core/parallel: bounded worker fan-out
//   - evaluation: Evaluate, EvaluateWithSearch, Report
//   - model_selection: KFold, TrainTestSplit, ParamGrid, GridSearchCV
//   - metrics: regression metrics and named scorers
//   - preprocessing: StandardScaler, MinMaxScaler
//   - sklearn/linear_model, sklearn/tree, sklearn/neighbors: regressors
//   - pkg/errors: error types, panic recovery, warnings
//   - pkg/log: structured logging on zerolog
//
// # Error Handling
//
// Object store failures are reported as *errors.PersistenceError and
// evaluation failures as *errors.EvaluationError. Both wrap the original
// cause, reachable with errors.Is and errors.As.
package mlkit
