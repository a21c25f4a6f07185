package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/core/parallel"
	"github.com/YuminosukeSato/mlkit/metrics"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/pkg/log"
)

// DefaultCV is the number of folds used when GridSearchCV.CV is zero.
const DefaultCV = 5

// CVResult holds the cross-validation outcome of one parameter combination.
type CVResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
	// Rank is 1 for the best combination. Equal mean scores share a rank.
	Rank int
}

// GridSearchCV performs exhaustive search over a parameter grid with k-fold
// cross-validation.
//
// Each (combination, fold) fit runs on a clone of Estimator, so the search
// itself never mutates Estimator when it implements model.Cloner. Estimators
// without Clone are searched sequentially on the instance itself.
type GridSearchCV struct {
	Estimator model.Estimator
	Grid      ParamGrid

	// CV is the number of folds. Zero means DefaultCV.
	CV int
	// NJobs bounds the number of concurrent fits; <= 0 means all CPUs.
	NJobs int
	// Refit fits BestEstimator on the full data after the search.
	Refit bool
	// Verbose > 0 logs the search plan, > 1 logs every fold score.
	Verbose int
	// Scoring names a metrics scorer. Empty means the estimator's own Score
	// when it implements model.Scorer, else R².
	Scoring string
	// Shuffle and RandomSeed configure the KFold splitter.
	Shuffle    bool
	RandomSeed int

	Logger log.Logger

	// Results
	BestParams    map[string]interface{}
	BestScore     float64
	BestIndex     int
	CVResults     []CVResult
	BestEstimator model.Estimator
}

// SearchOption configures a GridSearchCV.
type SearchOption func(*GridSearchCV)

// WithCV sets the number of folds.
func WithCV(cv int) SearchOption {
	return func(gs *GridSearchCV) { gs.CV = cv }
}

// WithNJobs sets the number of parallel workers.
func WithNJobs(n int) SearchOption {
	return func(gs *GridSearchCV) { gs.NJobs = n }
}

// WithRefit enables refitting the best estimator on the full data.
func WithRefit(refit bool) SearchOption {
	return func(gs *GridSearchCV) { gs.Refit = refit }
}

// WithVerbose sets the verbosity level.
func WithVerbose(level int) SearchOption {
	return func(gs *GridSearchCV) { gs.Verbose = level }
}

// WithScoring selects a named scorer from the metrics package.
func WithScoring(name string) SearchOption {
	return func(gs *GridSearchCV) { gs.Scoring = name }
}

// WithShuffle shuffles samples before splitting into folds.
func WithShuffle(shuffle bool, seed int) SearchOption {
	return func(gs *GridSearchCV) {
		gs.Shuffle = shuffle
		gs.RandomSeed = seed
	}
}

// WithSearchLogger sets the logger used for progress messages.
func WithSearchLogger(logger log.Logger) SearchOption {
	return func(gs *GridSearchCV) { gs.Logger = logger }
}

// NewGridSearchCV creates a grid search with 5 folds and refit enabled,
// matching scikit-learn's defaults.
func NewGridSearchCV(estimator model.Estimator, grid ParamGrid, options ...SearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		Estimator: estimator,
		Grid:      grid,
		CV:        DefaultCV,
		Refit:     true,
	}
	for _, opt := range options {
		opt(gs)
	}
	return gs
}

// Fit runs the search. See FitContext.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) error {
	return gs.FitContext(context.Background(), X, y)
}

// FitContext runs the search; cancelling ctx stops scheduling further fits.
// The first failing fit aborts the search and its error is returned.
func (gs *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if gs.Estimator == nil {
		return errors.NewValueError("GridSearchCV.Fit", "estimator is nil")
	}
	if err := gs.Grid.Validate(); err != nil {
		return err
	}
	scorer, err := gs.scorer()
	if err != nil {
		return err
	}

	n, _ := X.Dims()
	kf := NewKFold(gs.folds(), gs.Shuffle, gs.RandomSeed)
	folds, err := kf.Split(n)
	if err != nil {
		return err
	}

	combos := gs.Grid.Combinations()
	cloner, canClone := gs.Estimator.(model.Cloner)
	nJobs := gs.NJobs
	if !canClone {
		nJobs = 1
	}

	logger := gs.logger()
	if gs.Verbose > 0 {
		logger.Info("Fitting folds for each candidate",
			log.OperationKey, log.OperationSearch,
			log.ModelNameKey, modelName(gs.Estimator),
			log.FoldsKey, len(folds),
			log.CombinationsKey, len(combos),
			log.NJobsKey, parallel.Workers(nJobs, len(combos)*len(folds)),
		)
	}

	scores := make([][]float64, len(combos))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}

	start := time.Now()
	err = parallel.ForEach(ctx, len(combos)*len(folds), nJobs, func(ctx context.Context, task int) error {
		c, f := task/len(folds), task%len(folds)
		return errors.SafeExecute("GridSearchCV.Fit", func() error {
			est := gs.Estimator
			if canClone {
				est = cloner.Clone()
			}
			score, err := fitAndScore(est, combos[c], X, y, folds[f], scorer)
			if err != nil {
				return errors.Wrapf(err, "params %v, fold %d", combos[c], f)
			}
			scores[c][f] = score

			if gs.Verbose > 1 {
				logger.Debug("fold scored",
					log.HyperParamsKey, combos[c],
					log.IterationKey, f,
					log.CVScoreKey, score,
				)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	gs.CVResults = make([]CVResult, len(combos))
	for c, combo := range combos {
		mean, std := stat.PopMeanStdDev(scores[c], nil)
		gs.CVResults[c] = CVResult{
			Params:     combo,
			FoldScores: scores[c],
			MeanScore:  mean,
			StdScore:   std,
		}
	}
	rankResults(gs.CVResults)

	gs.BestIndex = bestIndex(gs.CVResults)
	if gs.BestIndex < 0 {
		return errors.NewModelError("GridSearchCV.Fit", "every parameter combination scored NaN", nil)
	}
	gs.BestParams = gs.CVResults[gs.BestIndex].Params
	gs.BestScore = gs.CVResults[gs.BestIndex].MeanScore

	if gs.Verbose > 0 {
		logger.Info("grid search finished",
			log.OperationKey, log.OperationSearch,
			log.HyperParamsKey, gs.BestParams,
			log.CVScoreKey, gs.BestScore,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	gs.BestEstimator = nil
	if gs.Refit {
		best := gs.Estimator
		if canClone {
			best = cloner.Clone()
		}
		if err := best.SetParams(gs.BestParams); err != nil {
			return err
		}
		if err := best.Fit(X, y); err != nil {
			return err
		}
		gs.BestEstimator = best
	}
	return nil
}

// Predict delegates to BestEstimator. Refit must have been enabled.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if gs.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return gs.BestEstimator.Predict(X)
}

func (gs *GridSearchCV) folds() int {
	if gs.CV == 0 {
		return DefaultCV
	}
	return gs.CV
}

func (gs *GridSearchCV) logger() log.Logger {
	if gs.Logger != nil {
		return gs.Logger
	}
	return log.GetLogger()
}

// scoreFunc scores a fitted estimator on held-out data.
type scoreFunc func(est model.Estimator, X, y mat.Matrix) (float64, error)

func (gs *GridSearchCV) scorer() (scoreFunc, error) {
	return resolveScorer(gs.Scoring)
}

func resolveScorer(name string) (scoreFunc, error) {
	if name != "" {
		fn, err := metrics.Scorer(name)
		if err != nil {
			return nil, err
		}
		return predictAndScore(fn), nil
	}
	return func(est model.Estimator, X, y mat.Matrix) (float64, error) {
		if s, ok := est.(model.Scorer); ok {
			return s.Score(X, y)
		}
		return predictAndScore(metrics.R2ScoreMatrix)(est, X, y)
	}, nil
}

func predictAndScore(fn metrics.ScoreFunc) scoreFunc {
	return func(est model.Estimator, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		return fn(y, pred)
	}
}

func fitAndScore(est model.Estimator, params map[string]interface{}, X, y mat.Matrix, fold Fold, score scoreFunc) (float64, error) {
	if len(params) > 0 {
		if err := est.SetParams(params); err != nil {
			return 0, err
		}
	}
	XTrain, yTrain := Subset(X, y, fold.TrainIndices)
	XVal, yVal := Subset(X, y, fold.TestIndices)

	if err := est.Fit(XTrain, yTrain); err != nil {
		return 0, err
	}
	return score(est, XVal, yVal)
}

// bestIndex returns the first combination with the highest mean score,
// skipping NaN means. It returns -1 when every mean is NaN.
func bestIndex(results []CVResult) int {
	best := -1
	for i, r := range results {
		if math.IsNaN(r.MeanScore) {
			continue
		}
		if best < 0 || r.MeanScore > results[best].MeanScore {
			best = i
		}
	}
	return best
}

func rankResults(results []CVResult) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := results[order[a]].MeanScore, results[order[b]].MeanScore
		if math.IsNaN(sb) {
			return !math.IsNaN(sa)
		}
		return sa > sb
	})
	for pos, idx := range order {
		rank := pos + 1
		if pos > 0 {
			prev := order[pos-1]
			if results[prev].MeanScore == results[idx].MeanScore {
				rank = results[prev].Rank
			}
		}
		results[idx].Rank = rank
	}
}

func modelName(est interface{}) string {
	name := fmt.Sprintf("%T", est)
	if len(name) > 0 && name[0] == '*' {
		name = name[1:]
	}
	return name
}
