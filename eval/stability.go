// Package eval quantifies how sensitive the model's explanations are to
// input noise, and hosts the related measurement procedures (value
// histograms, local Lipschitz estimates).
package eval

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"senneval/datasets"
)

// Explainer is what the evaluation procedures need from a trained model.
type Explainer interface {
	PredictAndExplain(x []float64) ([]float64, int)
	ConceptActivation(x []float64) []float64
}

// ErrDimensionMismatch reports theta and h disagreeing in length during the
// elementwise combine.
var ErrDimensionMismatch = errors.New("theta and concept activation lengths differ")

// StabilityOptions configures one stability pass.
type StabilityOptions struct {
	// Scale is the noise standard deviation sigma.
	Scale float64
	// CombineWithActivation selects deps = theta(x) ⊙ h(x) instead of raw
	// theta(x).
	CombineWithActivation bool
	// PerturbOriginal evaluates the noised explanation at x+noise. The
	// default (false) evaluates it at the noise pattern alone, which is what
	// the reference implementation literally does.
	PerturbOriginal bool
	// Seed drives the noise stream; a fixed seed makes the whole pass
	// deterministic for a fixed model and sample order.
	Seed uint64
	// Progress renders a progress bar over the sample loop.
	Progress bool
}

// Stability computes, for every sample in ds, the Euclidean distance between
// the explanation-derived vector at the sample and the one recomputed under
// Gaussian noise of the configured scale. The result is index-aligned with
// ds and always has len(ds) entries; the first model failure aborts the
// pass.
func Stability(ds datasets.Set, expl Explainer, opts StabilityOptions) ([]float64, error) {
	noise := newNoiseSource(opts.Scale, opts.Seed)

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.New(len(ds))
	}

	distances := make([]float64, 0, len(ds))
	for i, s := range ds {
		deps, err := depsVector(expl, s.Pixels, opts.CombineWithActivation)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}

		noised := noise.draw(len(s.Pixels))
		if opts.PerturbOriginal {
			floats.Add(noised, s.Pixels)
		}
		depsNoise, err := depsVector(expl, noised, opts.CombineWithActivation)
		if err != nil {
			return nil, fmt.Errorf("sample %d (noised): %w", i, err)
		}
		if len(deps) != len(depsNoise) {
			return nil, fmt.Errorf("sample %d: %w", i, ErrDimensionMismatch)
		}

		floats.Sub(deps, depsNoise)
		distances = append(distances, floats.Norm(deps, 2))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return distances, nil
}

// depsVector computes the explanation-derived vector at x.
func depsVector(expl Explainer, x []float64, combine bool) ([]float64, error) {
	theta, _ := expl.PredictAndExplain(x)
	deps := append([]float64(nil), theta...)
	if combine {
		h := expl.ConceptActivation(x)
		if len(h) != len(deps) {
			return nil, fmt.Errorf("%w: theta=%d h=%d", ErrDimensionMismatch, len(deps), len(h))
		}
		floats.Mul(deps, h)
	}
	return deps, nil
}

// noiseSource draws i.i.d. Normal(0, sigma^2) vectors. Sigma zero yields
// all-zero draws, which makes the zero-scale pass compare against the
// explanation at an all-zero input.
type noiseSource struct {
	dist  distuv.Normal
	sigma float64
}

func newNoiseSource(sigma float64, seed uint64) *noiseSource {
	return &noiseSource{
		dist:  distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewSource(seed)},
		sigma: sigma,
	}
}

func (n *noiseSource) draw(size int) []float64 {
	out := make([]float64, size)
	if n.sigma == 0 {
		return out
	}
	for i := range out {
		out[i] = n.dist.Rand()
	}
	return out
}
