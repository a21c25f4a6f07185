package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// Lasso is a linear model trained with L1 prior as regularizer.
//
// The objective is (1 / (2 * n_samples)) * ||y - Xw||^2 + alpha * ||w||_1,
// solved by cyclic coordinate descent.
type Lasso struct {
	State *model.StateManager

	Alpha        float64
	FitIntercept bool
	MaxIter      int
	Tol          float64

	Coef_      []float64
	Intercept_ float64
	NIter_     int
}

// LassoOption configures a Lasso model.
type LassoOption func(*Lasso)

// WithLassoAlpha sets the L1 regularization strength.
func WithLassoAlpha(alpha float64) LassoOption {
	return func(l *Lasso) {
		l.Alpha = alpha
	}
}

// WithLassoFitIntercept sets whether to fit an intercept.
func WithLassoFitIntercept(fit bool) LassoOption {
	return func(l *Lasso) {
		l.FitIntercept = fit
	}
}

// WithLassoMaxIter sets the maximum number of coordinate descent sweeps.
func WithLassoMaxIter(maxIter int) LassoOption {
	return func(l *Lasso) {
		l.MaxIter = maxIter
	}
}

// WithLassoTol sets the convergence tolerance.
func WithLassoTol(tol float64) LassoOption {
	return func(l *Lasso) {
		l.Tol = tol
	}
}

// NewLasso creates a Lasso model with scikit-learn defaults.
func NewLasso(options ...LassoOption) *Lasso {
	l := &Lasso{
		State:        model.NewStateManager(),
		Alpha:        1.0,
		FitIntercept: true,
		MaxIter:      1000,
		Tol:          1e-4,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Fit runs coordinate descent until the largest coefficient update falls
// below Tol (relative to the largest coefficient). A ConvergenceWarning is
// emitted when MaxIter sweeps are exhausted; the last iterate is kept.
func (l *Lasso) Fit(X, y mat.Matrix) error {
	if err := l.validateParams(); err != nil {
		return err
	}
	rows, cols, err := validateXY("Lasso.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centerData(X, y, l.FitIntercept)
	n := float64(rows)

	colNorm := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := Xc.ColView(j)
		colNorm[j] = mat.Dot(col, col)
	}

	coef := make([]float64, cols)
	residual := mat.VecDenseCopyOf(yc)
	threshold := l.Alpha * n

	converged := false
	iter := 0
	for iter < l.MaxIter {
		iter++
		var maxDelta, maxCoef float64

		for j := 0; j < cols; j++ {
			if colNorm[j] == 0 {
				continue
			}
			col := Xc.ColView(j)
			old := coef[j]

			// rho = X_j^T (r + X_j * w_j)
			rho := mat.Dot(col, residual) + colNorm[j]*old
			if err := errors.CheckScalar("Lasso.Fit", rho, iter); err != nil {
				return err
			}
			coef[j] = errors.SoftThreshold(rho, threshold) / colNorm[j]

			if delta := coef[j] - old; delta != 0 {
				residual.AddScaledVec(residual, -delta, col)
				maxDelta = math.Max(maxDelta, math.Abs(delta))
			}
			maxCoef = math.Max(maxCoef, math.Abs(coef[j]))
		}

		if err := errors.CheckNumericalStability("Lasso.Fit", coef, iter); err != nil {
			return err
		}
		if maxCoef == 0 || maxDelta/maxCoef < l.Tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("Lasso", iter,
			"objective did not converge. Consider increasing max_iter or the regularization strength"))
	}

	l.Coef_ = coef
	l.NIter_ = iter
	l.Intercept_ = 0
	if l.FitIntercept {
		l.Intercept_ = interceptFrom(coef, xMean, yMean)
	}

	l.ensureState().SetFitted(cols, rows)
	return nil
}

func (l *Lasso) validateParams() error {
	if l.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", l.Alpha)
	}
	if l.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", l.MaxIter)
	}
	if l.Tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", l.Tol)
	}
	return nil
}

// Predict returns X * coef + intercept.
func (l *Lasso) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := l.ensureState().RequireFitted("Lasso", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := l.State.RequireFeatures("Lasso.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, l.Coef_, l.Intercept_), nil
}

// Score returns R^2 of the prediction.
func (l *Lasso) Score(X, y mat.Matrix) (float64, error) {
	return score(l, X, y)
}

// Coef returns a copy of the learned coefficients.
func (l *Lasso) Coef() []float64 {
	return copyFloats(l.Coef_)
}

// Intercept returns the learned intercept.
func (l *Lasso) Intercept() float64 {
	return l.Intercept_
}

func (l *Lasso) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         l.Alpha,
		"fit_intercept": l.FitIntercept,
		"max_iter":      l.MaxIter,
		"tol":           l.Tol,
	}
}

func (l *Lasso) SetParams(params map[string]interface{}) error {
	next := *l
	for name, value := range params {
		switch name {
		case "alpha":
			v, err := model.FloatParam(name, value)
			if err != nil {
				return err
			}
			next.Alpha = v
		case "fit_intercept":
			v, err := model.BoolParam(name, value)
			if err != nil {
				return err
			}
			next.FitIntercept = v
		case "max_iter":
			v, err := model.IntParam(name, value)
			if err != nil {
				return err
			}
			next.MaxIter = v
		case "tol":
			v, err := model.FloatParam(name, value)
			if err != nil {
				return err
			}
			next.Tol = v
		default:
			return model.UnknownParam("Lasso", name, value)
		}
	}
	if err := next.validateParams(); err != nil {
		return err
	}
	*l = next
	return nil
}

func (l *Lasso) IsFitted() bool {
	return l.State.IsFitted()
}

func (l *Lasso) Clone() model.Estimator {
	return NewLasso(
		WithLassoAlpha(l.Alpha),
		WithLassoFitIntercept(l.FitIntercept),
		WithLassoMaxIter(l.MaxIter),
		WithLassoTol(l.Tol),
	)
}

func (l *Lasso) String() string {
	return fmt.Sprintf("Lasso(alpha=%g, fit_intercept=%t, max_iter=%d, tol=%g)",
		l.Alpha, l.FitIntercept, l.MaxIter, l.Tol)
}

func (l *Lasso) ensureState() *model.StateManager {
	if l.State == nil {
		l.State = model.NewStateManager()
	}
	return l.State
}
