package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// LinearRegression is a linear regression model using ordinary least squares
// Compatible with scikit-learn's LinearRegression
type LinearRegression struct {
	State *model.StateManager

	// Hyperparameters
	FitIntercept bool

	// Learned parameters
	Coef_      []float64
	Intercept_ float64
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// Fit はモデルを訓練データで学習
// QR分解で最小二乗問題を解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := validateXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centerData(X, y, lr.FitIntercept)
	if rows < cols {
		return errors.NewModelError("LinearRegression.Fit", "underdetermined system", errors.ErrSingularMatrix)
	}

	var qr mat.QR
	qr.Factorize(Xc)

	coefficients := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(coefficients, false, yc); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "failed to solve linear system", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}

	lr.Coef_ = mat.Col(nil, 0, coefficients)
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.Coef_, 0); err != nil {
		return err
	}
	lr.Intercept_ = 0
	if lr.FitIntercept {
		lr.Intercept_ = interceptFrom(lr.Coef_, xMean, yMean)
	}

	lr.ensureState().SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.ensureState().RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := lr.State.RequireFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, lr.Coef_, lr.Intercept_), nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return score(lr, X, y)
}

// Coef は学習された重み係数のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	return copyFloats(lr.Coef_)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.Intercept_
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	next := *lr
	for name, value := range params {
		switch name {
		case "fit_intercept":
			v, err := model.BoolParam(name, value)
			if err != nil {
				return err
			}
			next.FitIntercept = v
		default:
			return model.UnknownParam("LinearRegression", name, value)
		}
	}
	*lr = next
	return nil
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}

// Clone はモデルの新しいインスタンスを作成（同じハイパーパラメータ、未学習）
func (lr *LinearRegression) Clone() model.Estimator {
	return NewLinearRegression(WithLRFitIntercept(lr.FitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)",
		lr.FitIntercept, len(lr.Coef_))
}

func (lr *LinearRegression) ensureState() *model.StateManager {
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	return lr.State
}
