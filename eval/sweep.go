package eval

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"senneval/datasets"
	"senneval/util"
)

// SweepResult maps each noise scale to the per-sample distance sequences of
// both method variants. Built fully during one run, consumed by reporting.
type SweepResult struct {
	Scales   []float64
	Raw      map[float64][]float64
	Combined map[float64][]float64
}

// Curve is the per-scale summary of one variant.
type Curve struct {
	Means []float64
	Stds  []float64
}

// Scales enumerates start, start+step, ... up to stop inclusive within a
// half-step tolerance (the reference sweep is 0.00 to 0.20 by 0.02).
func Scales(start, stop, step float64) []float64 {
	var out []float64
	for s := start; s <= stop+step/2; s += step {
		out = append(out, s)
	}
	return out
}

// Sweep runs the stability evaluator twice per scale, once per variant.
// Every scale reuses the same noise seed so the two variants see identical
// perturbations.
func Sweep(ds datasets.Set, expl Explainer, scales []float64, seed uint64, progress bool) (SweepResult, error) {
	res := SweepResult{
		Scales:   append([]float64(nil), scales...),
		Raw:      make(map[float64][]float64, len(scales)),
		Combined: make(map[float64][]float64, len(scales)),
	}
	for _, scale := range scales {
		util.Logger.Infof("stability sweep: scale=%.2f", scale)
		raw, err := Stability(ds, expl, StabilityOptions{
			Scale: scale, Seed: seed, Progress: progress,
		})
		if err != nil {
			return SweepResult{}, fmt.Errorf("scale %.2f: %w", scale, err)
		}
		combined, err := Stability(ds, expl, StabilityOptions{
			Scale: scale, CombineWithActivation: true, Seed: seed, Progress: progress,
		})
		if err != nil {
			return SweepResult{}, fmt.Errorf("scale %.2f (combined): %w", scale, err)
		}
		res.Raw[scale] = raw
		res.Combined[scale] = combined
	}
	return res, nil
}

// Summarize computes per-scale mean and population standard deviation for
// one variant, ordered like Scales.
func (r SweepResult) Summarize(combined bool) Curve {
	src := r.Raw
	if combined {
		src = r.Combined
	}
	c := Curve{
		Means: make([]float64, len(r.Scales)),
		Stds:  make([]float64, len(r.Scales)),
	}
	for i, scale := range r.Scales {
		d := src[scale]
		c.Means[i] = stat.Mean(d, nil)
		c.Stds[i] = stat.PopStdDev(d, nil)
	}
	return c
}
