// Package log defines standard attribute keys for machine learning operations.
//
// These keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "LinearRegression", "StandardScaler", "Ridge"
	ModelNameKey = "model.name"

	// CandidateKey is the caller-given name of a candidate in an evaluation.
	CandidateKey = "model.candidate"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "search"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	ComponentKey = "ml.component"

	// RunIDKey correlates every record emitted by one evaluation call.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// PathKey is a filesystem path read or written by the operation.
	PathKey = "data.path"

	// DataSizeKey indicates the size of a written or read blob in bytes.
	DataSizeKey = "data.size_bytes"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// TrainScoreKey records R² on the training split.
	TrainScoreKey = "metrics.train_r2"

	// TestScoreKey records R² on the test split.
	TestScoreKey = "metrics.test_r2"

	// CVScoreKey records the mean cross-validation score.
	CVScoreKey = "metrics.cv_score"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"
)

// Hyperparameters and Search
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// CombinationsKey records the number of hyperparameter combinations searched.
	CombinationsKey = "search.combinations"

	// FoldsKey records the number of cross-validation folds.
	FoldsKey = "search.folds"

	// NJobsKey records the number of parallel workers.
	NJobsKey = "search.n_jobs"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute value constants for common operations.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSearch    = "search"
	OperationSave      = "save"
	OperationLoad      = "load"
)
