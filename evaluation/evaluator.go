// Package evaluation fits a set of named candidate regressors on a train
// split and reports their R² on both splits, optionally tuning each candidate
// with cross-validated grid search first.
//
// Estimators passed in are mutated in place: SetParams applies the best
// parameters found by the search and Fit trains them on the full train split.
// Passing the same instance to two concurrent evaluations is unsafe.
package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/metrics"
	"github.com/YuminosukeSato/mlkit/model_selection"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/pkg/log"
)

const (
	opEvaluate = "evaluate"
	opSearch   = "evaluate_with_search"
)

// Candidate is a named estimator.
type Candidate struct {
	Name      string
	Estimator model.Estimator
}

// Candidates is an ordered candidate set. Iteration order is report order.
type Candidates []Candidate

// Names returns the candidate names in order.
func (c Candidates) Names() []string {
	names := make([]string, len(c))
	for i, cand := range c {
		names[i] = cand.Name
	}
	return names
}

// Grids maps a candidate name to its parameter grid.
type Grids map[string]model_selection.ParamGrid

// SearchOptions configures the grid search run for each candidate.
type SearchOptions struct {
	// CV is the number of folds; zero means model_selection.DefaultCV.
	CV int
	// NJobs bounds concurrent fits within one candidate's search; <= 0 means all CPUs.
	NJobs int
	// Verbose is passed through to the search.
	Verbose int
	// Refit also fits the search's own best estimator on the train split.
	Refit bool
	// Scoring names a metrics scorer for cross-validation; empty means the
	// estimator's native Score.
	Scoring string
}

// DefaultSearchOptions returns 5-fold search on all CPUs without refit.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{CV: model_selection.DefaultCV}
}

type config struct {
	logger log.Logger
	runID  string
}

// Option configures an evaluation call.
type Option func(*config)

// WithLogger sets the logger. Records are tagged with the run id.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(c *config) {
		c.runID = id
	}
}

func newConfig(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLogger()
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	cfg.logger = cfg.logger.With(log.RunIDKey, cfg.runID)
	return cfg
}

// Evaluate fits every candidate on the train split in order and records its
// R² on both splits. The first failure aborts the evaluation with an
// *errors.EvaluationError naming the failing candidate.
func Evaluate(XTrain, yTrain, XTest, yTest mat.Matrix, candidates Candidates, opts ...Option) (*Report, error) {
	cfg := newConfig(opts)
	report := &Report{RunID: cfg.runID}

	var current string
	err := errors.Guard(opEvaluate, mapError(opEvaluate, &current), func() error {
		if err := checkCandidates(candidates, &current); err != nil {
			return err
		}
		for _, cand := range candidates {
			current = cand.Name
			entry := Entry{Name: cand.Name}
			if err := fitAndScore(cfg.logger, cand, XTrain, yTrain, XTest, yTest, &entry); err != nil {
				return err
			}
			report.Entries = append(report.Entries, entry)
		}
		return nil
	})
	if err != nil {
		cfg.logger.Error("evaluation failed", err, log.OperationKey, opEvaluate)
		return nil, err
	}
	return report, nil
}

// EvaluateWithSearch is EvaluateWithSearchContext with a background context.
func EvaluateWithSearch(XTrain, yTrain, XTest, yTest mat.Matrix, candidates Candidates, grids Grids, search SearchOptions, opts ...Option) (*Report, error) {
	return EvaluateWithSearchContext(context.Background(), XTrain, yTrain, XTest, yTest, candidates, grids, search, opts...)
}

// EvaluateWithSearchContext tunes each candidate in order with k-fold grid
// search over grids[name], applies the best parameters to the candidate via
// SetParams, fits it on the full train split and records its R² on both
// splits. A candidate without a grid fails with errors.ErrMissingParamGrid.
// Candidates are searched one at a time; fits within a search run on up to
// search.NJobs goroutines.
func EvaluateWithSearchContext(ctx context.Context, XTrain, yTrain, XTest, yTest mat.Matrix, candidates Candidates, grids Grids, search SearchOptions, opts ...Option) (*Report, error) {
	cfg := newConfig(opts)
	report := &Report{RunID: cfg.runID}

	var current string
	err := errors.Guard(opSearch, mapError(opSearch, &current), func() error {
		if err := checkCandidates(candidates, &current); err != nil {
			return err
		}
		for _, cand := range candidates {
			current = cand.Name
			grid, ok := grids[cand.Name]
			if !ok {
				return errors.Wrapf(errors.ErrMissingParamGrid, "no parameter grid for %q", cand.Name)
			}

			gs := &model_selection.GridSearchCV{
				Estimator: cand.Estimator,
				Grid:      grid,
				CV:        search.CV,
				NJobs:     search.NJobs,
				Refit:     search.Refit,
				Verbose:   search.Verbose,
				Scoring:   search.Scoring,
				Logger:    cfg.logger.With(log.CandidateKey, cand.Name),
			}
			start := time.Now()
			if err := gs.FitContext(ctx, XTrain, yTrain); err != nil {
				return err
			}
			cfg.logger.Info("grid search completed",
				log.CandidateKey, cand.Name,
				log.HyperParamsKey, gs.BestParams,
				log.CVScoreKey, gs.BestScore,
				log.DurationMsKey, time.Since(start).Milliseconds(),
			)

			if err := cand.Estimator.SetParams(gs.BestParams); err != nil {
				return err
			}
			entry := Entry{
				Name:        cand.Name,
				Tuned:       true,
				BestParams:  gs.BestParams,
				BestCVScore: gs.BestScore,
			}
			if err := fitAndScore(cfg.logger, cand, XTrain, yTrain, XTest, yTest, &entry); err != nil {
				return err
			}
			report.Entries = append(report.Entries, entry)
		}
		return nil
	})
	if err != nil {
		cfg.logger.Error("evaluation failed", err, log.OperationKey, opSearch)
		return nil, err
	}
	return report, nil
}

// mapError wraps a failure once, naming the candidate being processed.
func mapError(op string, current *string) func(error) error {
	return func(err error) error {
		return errors.NewEvaluationError(op, *current, err)
	}
}

func checkCandidates(candidates Candidates, current *string) error {
	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		*current = cand.Name
		if cand.Estimator == nil {
			return errors.NewValueError("evaluation", "estimator is nil")
		}
		if _, dup := seen[cand.Name]; dup {
			return errors.NewValueError("evaluation", "duplicate candidate name")
		}
		seen[cand.Name] = struct{}{}
	}
	*current = ""
	return nil
}

func fitAndScore(logger log.Logger, cand Candidate, XTrain, yTrain, XTest, yTest mat.Matrix, entry *Entry) error {
	rows, cols := XTrain.Dims()
	start := time.Now()
	if err := cand.Estimator.Fit(XTrain, yTrain); err != nil {
		return err
	}

	trainScore, err := r2(cand.Estimator, XTrain, yTrain)
	if err != nil {
		return errors.Wrap(err, "train split")
	}
	testScore, err := r2(cand.Estimator, XTest, yTest)
	if err != nil {
		return errors.Wrap(err, "test split")
	}
	entry.TrainScore = trainScore
	entry.TestScore = testScore

	logger.Info("candidate evaluated",
		log.CandidateKey, cand.Name,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TrainScoreKey, trainScore,
		log.TestScoreKey, testScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func r2(est model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}
