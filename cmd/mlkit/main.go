// Command mlkit evaluates candidate regressors described by a YAML run
// configuration and inspects objects saved by the object store.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/evaluation"
	"github.com/YuminosukeSato/mlkit/internal/config"
	"github.com/YuminosukeSato/mlkit/internal/dataset"
	"github.com/YuminosukeSato/mlkit/model_selection"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/pkg/log"
	"github.com/YuminosukeSato/mlkit/preprocessing"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mlkit",
		Short:         "Evaluate regression models and inspect saved objects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEvaluateCommand())
	root.AddCommand(newInspectCommand())
	return root
}

func newEvaluateCommand() *cobra.Command {
	var cfgPath, plotPath, logLevel string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Fit and score the candidates in a run configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				return errors.New("--config is required")
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if plotPath != "" {
				abs, err := filepath.Abs(plotPath)
				if err != nil {
					return err
				}
				cfg.Output.PlotPath = abs
			}
			if err := log.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
				return err
			}
			return runEvaluate(cmd.OutOrStdout(), cfg, filepath.Dir(cfgPath))
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "run configuration (YAML)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a score chart to this path (.png, .svg, .pdf)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	return cmd
}

// runEvaluate resolves relative paths in cfg against baseDir.
func runEvaluate(out io.Writer, cfg *config.Config, baseDir string) error {
	logger := log.GetLogger().With(log.ComponentKey, "cli")

	ds, err := dataset.LoadCSV(resolve(baseDir, cfg.Data.Path), dataset.Options{
		HasHeader: cfg.Data.Header(),
		Target:    cfg.Data.Target,
	})
	if err != nil {
		return err
	}
	samples, features := ds.Dims()
	logger.Info("dataset loaded",
		log.PathKey, cfg.Data.Path,
		log.SamplesKey, samples,
		log.FeaturesKey, features,
	)

	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(ds.X, ds.Y, cfg.Data.TestSize, cfg.Data.Seed)
	if err != nil {
		return err
	}

	scaler, err := newScaler(cfg.Preprocessing)
	if err != nil {
		return err
	}
	var trainIn, testIn mat.Matrix = XTrain, XTest
	if scaler != nil {
		if trainIn, err = scaler.FitTransform(XTrain); err != nil {
			return err
		}
		if testIn, err = scaler.Transform(XTest); err != nil {
			return err
		}
	}

	candidates, err := cfg.BuildCandidates()
	if err != nil {
		return err
	}

	var report *evaluation.Report
	if cfg.Tuned() {
		report, err = evaluation.EvaluateWithSearch(trainIn, yTrain, testIn, yTest,
			candidates, cfg.Grids(), cfg.SearchOptions(), evaluation.WithLogger(logger))
	} else {
		report, err = evaluation.Evaluate(trainIn, yTrain, testIn, yTest, candidates, evaluation.WithLogger(logger))
	}
	if err != nil {
		return err
	}

	if err := report.WriteTable(out); err != nil {
		return err
	}
	best, err := report.Best()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "best: %s (test R2 %.4f)\n", best.Name, best.TestScore)

	storeOpts := []model.StoreOption{model.WithCompression(cfg.Output.Compress), model.WithLogger(logger)}
	if cfg.Output.ModelPath != "" {
		est := candidates[indexOf(candidates, best.Name)].Estimator
		if err := model.Save(resolve(baseDir, cfg.Output.ModelPath), est, storeOpts...); err != nil {
			return err
		}
	}
	if cfg.Output.ScalerPath != "" && scaler != nil {
		if err := model.Save(resolve(baseDir, cfg.Output.ScalerPath), scaler, storeOpts...); err != nil {
			return err
		}
	}
	if cfg.Output.PlotPath != "" {
		if err := report.Plot(resolve(baseDir, cfg.Output.PlotPath)); err != nil {
			return err
		}
	}
	return nil
}

func newScaler(mode string) (model.Transformer, error) {
	switch mode {
	case config.PreprocessNone, "":
		return nil, nil
	case config.PreprocessStandard:
		return preprocessing.NewStandardScalerDefault(), nil
	case config.PreprocessMinMax:
		return preprocessing.NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("preprocessing", "unknown mode", mode)
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print the type and parameters of a saved object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := model.Load(args[0])
			if err != nil {
				return err
			}
			return describe(cmd.OutOrStdout(), obj)
		},
	}
}

func describe(out io.Writer, obj interface{}) error {
	fmt.Fprintf(out, "type: %T\n", obj)
	if s, ok := obj.(fmt.Stringer); ok {
		fmt.Fprintf(out, "value: %s\n", s.String())
	} else {
		fmt.Fprintf(out, "value: %v\n", obj)
	}

	if g, ok := obj.(model.ParameterGetter); ok {
		params := g.GetParams()
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %v\n", name, params[name])
		}
	}
	return nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func indexOf(candidates evaluation.Candidates, name string) int {
	for i, c := range candidates {
		if c.Name == name {
			return i
		}
	}
	return -1
}
