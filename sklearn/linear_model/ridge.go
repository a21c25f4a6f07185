package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// Ridge is linear least squares with L2 regularization.
//
// Minimizes ||y - Xw||^2 + alpha * ||w||^2. The intercept is not penalized.
type Ridge struct {
	State *model.StateManager

	Alpha        float64
	FitIntercept bool

	Coef_      []float64
	Intercept_ float64
}

// RidgeOption configures a Ridge model.
type RidgeOption func(*Ridge)

// WithRidgeAlpha sets the regularization strength.
func WithRidgeAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) {
		r.Alpha = alpha
	}
}

// WithRidgeFitIntercept sets whether to fit an intercept.
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) {
		r.FitIntercept = fit
	}
}

// NewRidge creates a Ridge model with alpha=1.0 and fit_intercept=true.
func NewRidge(options ...RidgeOption) *Ridge {
	r := &Ridge{
		State:        model.NewStateManager(),
		Alpha:        1.0,
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Fit solves the normal equations (X^T X + alpha I) w = X^T y by Cholesky.
func (r *Ridge) Fit(X, y mat.Matrix) error {
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	rows, cols, err := validateXY("Ridge.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centerData(X, y, r.FitIntercept)

	gram := mat.NewSymDense(cols, nil)
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}

	rhs := mat.NewVecDense(cols, nil)
	rhs.MulVec(Xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.NewModelError("Ridge.Fit", "gram matrix is not positive definite", errors.ErrSingularMatrix)
	}
	coef := mat.NewVecDense(cols, nil)
	if err := chol.SolveVecTo(coef, rhs); err != nil {
		return errors.NewModelError("Ridge.Fit", "failed to solve normal equations", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}

	r.Coef_ = mat.Col(nil, 0, coef)
	if err := errors.CheckNumericalStability("Ridge.Fit", r.Coef_, 0); err != nil {
		return err
	}
	r.Intercept_ = 0
	if r.FitIntercept {
		r.Intercept_ = interceptFrom(r.Coef_, xMean, yMean)
	}

	r.ensureState().SetFitted(cols, rows)
	return nil
}

// Predict returns X * coef + intercept.
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.ensureState().RequireFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := r.State.RequireFeatures("Ridge.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, r.Coef_, r.Intercept_), nil
}

// Score returns R^2 of the prediction.
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	return score(r, X, y)
}

// Coef returns a copy of the learned coefficients.
func (r *Ridge) Coef() []float64 {
	return copyFloats(r.Coef_)
}

// Intercept returns the learned intercept.
func (r *Ridge) Intercept() float64 {
	return r.Intercept_
}

func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.Alpha,
		"fit_intercept": r.FitIntercept,
	}
}

func (r *Ridge) SetParams(params map[string]interface{}) error {
	next := *r
	for name, value := range params {
		switch name {
		case "alpha":
			v, err := model.FloatParam(name, value)
			if err != nil {
				return err
			}
			if v < 0 {
				return errors.NewValidationError(name, "must be non-negative", value)
			}
			next.Alpha = v
		case "fit_intercept":
			v, err := model.BoolParam(name, value)
			if err != nil {
				return err
			}
			next.FitIntercept = v
		default:
			return model.UnknownParam("Ridge", name, value)
		}
	}
	*r = next
	return nil
}

func (r *Ridge) IsFitted() bool {
	return r.State.IsFitted()
}

func (r *Ridge) Clone() model.Estimator {
	return NewRidge(WithRidgeAlpha(r.Alpha), WithRidgeFitIntercept(r.FitIntercept))
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.Alpha, r.FitIntercept)
}

func (r *Ridge) ensureState() *model.StateManager {
	if r.State == nil {
		r.State = model.NewStateManager()
	}
	return r.State
}
