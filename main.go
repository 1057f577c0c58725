// Command senneval trains a self-explaining MNIST classifier and measures
// the stability of its explanations under input noise.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"senneval/config"
	"senneval/datasets"
	"senneval/eval"
	"senneval/ml"
	"senneval/util"
)

var (
	cfgPath string
	verbose bool
	cfg     config.Config

	flagHType          string
	flagNConcepts      int
	flagConceptDim     int
	flagThetaDim       int
	flagPositiveTheta  bool
	flagThetaRegType   string
	flagThetaRegLambda float64
	flagLoadModel      bool
	flagTrain          bool
	flagBatchSize      int
	flagNumWorkers     int
	flagEpochs         int
	flagLR             float64
	flagValidFraction  float64
	flagShuffle        bool
	flagSeed           int64
	flagNoiseSeed      uint64
	flagLipCalls       int
	flagLipEps         float64
	flagLipPoints      int
	flagOptim          string
	flagDataDir        string
	flagResultsDir     string
	flagSaveDistances  bool
	flagHistKind       string
)

var rootCmd = &cobra.Command{
	Use:   "senneval",
	Short: "Train a self-explaining MNIST classifier and evaluate explanation stability",
	Long: `senneval trains (or loads) a self-explaining classifier on MNIST, then
measures how much the model's relevance coefficients move when the input is
replaced by Gaussian noise: value histograms first, then a full noise sweep
with a stability chart.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := util.InitLogger(verbose, ""); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		util.Logger.Infof("config: %s", cfg.Tag())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		util.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline()
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model and save the best checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.LoadModel = false
		cfg.Train = true
		_, _, err := readyModel()
		return err
	},
}

var stabilityCmd = &cobra.Command{
	Use:   "stability",
	Short: "Run the noise-stability sweep and render the chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, paths, err := readyModel()
		if err != nil {
			return err
		}
		data, err := loadData()
		if err != nil {
			return err
		}
		return runSweep(ml.NewExplainer(m), data.Test, paths)
	},
}

var histCmd = &cobra.Command{
	Use:   "hist",
	Short: "Render the pooled-value histogram for one quantity",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := eval.ParseHistKind(flagHistKind)
		if err != nil {
			return err
		}
		m, paths, err := readyModel()
		if err != nil {
			return err
		}
		data, err := loadData()
		if err != nil {
			return err
		}
		return runHistogram(ml.NewExplainer(m), data.Test, kind, paths)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict [image-glob...]",
	Short: "Classify and explain 28x28 grayscale image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := readyModel()
		if err != nil {
			return err
		}
		expl := ml.NewExplainer(m)
		for _, pattern := range args {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if len(matches) == 0 {
				return fmt.Errorf("no files match %q", pattern)
			}
			for _, fn := range matches {
				px, err := datasets.ReadImageFile(fn)
				if err != nil {
					return err
				}
				theta, pred := expl.PredictAndExplain(px)
				fmt.Printf("%s: class=%d theta=%v\n", fn, pred, theta)
			}
		}
		return nil
	},
}

var lipschitzCmd = &cobra.Command{
	Use:   "lipschitz",
	Short: "Estimate local Lipschitz constants of the explanation map",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := readyModel()
		if err != nil {
			return err
		}
		data, err := loadData()
		if err != nil {
			return err
		}
		est, err := eval.Lipschitz(data.Test, ml.NewExplainer(m), eval.LipschitzOptions{
			Calls:  cfg.LipCalls,
			Eps:    cfg.LipEps,
			Points: cfg.LipPoints,
			Optim:  cfg.Optim,
			Seed:   cfg.NoiseSeed,
		})
		if err != nil {
			return err
		}
		logLipschitz(est)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "optional YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	pf.StringVar(&flagHType, "h-type", config.HTypeFCC, "conceptizer architecture: input, cnn or fcc")
	pf.IntVar(&flagNConcepts, "nconcepts", 5, "number of concepts")
	pf.IntVar(&flagConceptDim, "concept-dim", 10, "concept layer width multiplier")
	pf.IntVar(&flagThetaDim, "theta-dim", 0, "theta dimension (defaults to the class count)")
	pf.BoolVar(&flagPositiveTheta, "positive-theta", false, "constrain relevance coefficients to be positive")
	pf.StringVar(&flagThetaRegType, "theta-reg-type", "unreg", "trainer variant: unreg, none, grad1, grad2, grad3 or crosslip")
	pf.Float64Var(&flagThetaRegLambda, "theta-reg-lambda", 1e-4, "stability penalty weight")
	pf.BoolVar(&flagLoadModel, "load-model", false, "skip training, load the checkpoint")
	pf.BoolVar(&flagTrain, "train", true, "train when not loading")
	pf.IntVar(&flagBatchSize, "batch-size", 64, "minibatch size")
	pf.IntVar(&flagNumWorkers, "num-workers", 1, "dataset parsing workers")
	pf.IntVar(&flagEpochs, "epochs", 10, "training epochs")
	pf.Float64Var(&flagLR, "lr", 0.01, "learning rate")
	pf.Float64Var(&flagValidFraction, "valid-fraction", 0.1, "validation split fraction")
	pf.BoolVar(&flagShuffle, "shuffle", true, "shuffle before the validation split")
	pf.Int64Var(&flagSeed, "seed", 2008, "split and init seed")
	pf.Uint64Var(&flagNoiseSeed, "noise-seed", 2008, "noise stream seed")
	pf.IntVar(&flagLipCalls, "lip-calls", 10, "candidate perturbations per point in Lipschitz estimation")
	pf.Float64Var(&flagLipEps, "lip-eps", 0.01, "perturbation radius for Lipschitz estimation")
	pf.IntVar(&flagLipPoints, "lip-points", 100, "sample size for Lipschitz estimation")
	pf.StringVar(&flagOptim, "optim", "random", "Lipschitz candidate search: random or grid")
	pf.StringVar(&flagDataDir, "data-dir", "data/MNIST", "dataset directory")
	pf.StringVar(&flagResultsDir, "results-dir", "out", "results base directory")
	pf.BoolVar(&flagSaveDistances, "save-distances", false, "dump raw sweep distances")

	histCmd.Flags().StringVar(&flagHistKind, "kind", string(eval.HistProduct), "quantity to pool: h(x), theta(x) or theta(x)h(x)")

	rootCmd.AddCommand(trainCmd, stabilityCmd, histCmd, predictCmd, lipschitzCmd)
}

// applyFlagOverrides copies every flag the user actually set onto the
// config, so YAML values survive unless overridden.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("h-type", func() { c.HType = flagHType })
	set("nconcepts", func() { c.NConcepts = flagNConcepts })
	set("concept-dim", func() { c.ConceptDim = flagConceptDim })
	set("theta-dim", func() { c.ThetaDim = flagThetaDim })
	set("positive-theta", func() { c.PositiveTheta = flagPositiveTheta })
	set("theta-reg-type", func() { c.ThetaRegType = flagThetaRegType })
	set("theta-reg-lambda", func() { c.ThetaRegLambda = flagThetaRegLambda })
	set("load-model", func() { c.LoadModel = flagLoadModel })
	set("train", func() { c.Train = flagTrain })
	set("batch-size", func() { c.BatchSize = flagBatchSize })
	set("num-workers", func() { c.NumWorkers = flagNumWorkers })
	set("epochs", func() { c.Epochs = flagEpochs })
	set("lr", func() { c.LR = flagLR })
	set("valid-fraction", func() { c.ValidFraction = flagValidFraction })
	set("shuffle", func() { c.Shuffle = flagShuffle })
	set("seed", func() { c.Seed = flagSeed })
	set("noise-seed", func() { c.NoiseSeed = flagNoiseSeed })
	set("lip-calls", func() { c.LipCalls = flagLipCalls })
	set("lip-eps", func() { c.LipEps = flagLipEps })
	set("lip-points", func() { c.LipPoints = flagLipPoints })
	set("optim", func() { c.Optim = flagOptim })
	set("data-dir", func() { c.DataDir = flagDataDir })
	set("results-dir", func() { c.ResultsDir = flagResultsDir })
	set("save-distances", func() { c.SaveDistances = flagSaveDistances })
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
