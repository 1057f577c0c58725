package main

import (
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"senneval/datasets"
	"senneval/eval"
	"senneval/ml"
	"senneval/report"
	"senneval/util"
)

// runPipeline is the default end-to-end run: ready the model, render the
// three value histograms, then sweep noise scales and chart the result.
func runPipeline() error {
	m, paths, err := readyModel()
	if err != nil {
		return err
	}
	data, err := loadData()
	if err != nil {
		return err
	}
	expl := ml.NewExplainer(m)

	for _, kind := range []eval.HistKind{eval.HistProduct, eval.HistTheta, eval.HistH} {
		if err := runHistogram(expl, data.Test, kind, paths); err != nil {
			return err
		}
	}
	return runSweep(expl, data.Test, paths)
}

// readyModel resolves the configured model (load or train) and hands back
// the run's output paths alongside it.
func readyModel() (*ml.SENN, report.Paths, error) {
	paths, err := report.DirNames(cfg.ResultsDir, cfg)
	if err != nil {
		return nil, report.Paths{}, err
	}

	state := ml.Plan(cfg.LoadModel, cfg.Train)
	util.Logger.Infof("model state: %s", state)

	data := datasets.Data{}
	if state == ml.StateNeedsTraining {
		data, err = loadData()
		if err != nil {
			return nil, report.Paths{}, err
		}
	}

	m, err := ml.Resolve(cfg, data, filepath.Join(paths.Model, ml.CheckpointName))
	if err != nil {
		return nil, report.Paths{}, err
	}
	return m, paths, nil
}

// loadData parses MNIST once per process; training and evaluation share the
// partitions.
var loadData = sync.OnceValues(func() (datasets.Data, error) {
	return datasets.Load(cfg.DataDir, cfg.ValidFraction, cfg.Shuffle, cfg.Seed, cfg.NumWorkers)
})

func runSweep(expl *ml.Explainer, test datasets.Set, paths report.Paths) error {
	scales := eval.Scales(0.0, 0.20, 0.02)
	res, err := eval.Sweep(test, expl, scales, cfg.NoiseSeed, true)
	if err != nil {
		return err
	}
	if err := report.StabilityChart(res, filepath.Join(paths.Results, "stability.png")); err != nil {
		return err
	}
	if cfg.SaveDistances {
		if err := report.WriteDistances(res, filepath.Join(paths.Results, "distances.gob")); err != nil {
			return err
		}
	}
	return nil
}

var histFileNames = map[eval.HistKind]string{
	eval.HistH:       "hist_h.png",
	eval.HistTheta:   "hist_theta.png",
	eval.HistProduct: "hist_theta_h.png",
}

func runHistogram(expl *ml.Explainer, test datasets.Set, kind eval.HistKind, paths report.Paths) error {
	util.Logger.Infof("histogram: %s", kind)
	h, err := eval.ValueHistogram(test, expl, kind, true)
	if err != nil {
		return err
	}
	return report.HistogramChart(h, filepath.Join(paths.Results, histFileNames[kind]))
}

func logLipschitz(estimates []float64) {
	util.Logger.Infof("lipschitz estimates over %d points: mean=%.4f max=%.4f",
		len(estimates), stat.Mean(estimates, nil), floats.Max(estimates))
}
