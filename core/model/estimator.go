package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters in place.
	SetParams(params map[string]interface{}) error
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// Estimator is the capability set the evaluator and grid search rely on.
// Concrete regressors and third-party adapters implement it.
type Estimator interface {
	Fitter
	Predictor
	ParameterSetter
}

// Scorer is the interface for models that can compute a native score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Cloner is implemented by estimators that can produce an unfitted copy
// with identical hyperparameters. Parallel grid search requires it.
type Cloner interface {
	Clone() Estimator
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
	ParameterGetter
	Cloner
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
