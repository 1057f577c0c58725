package eval

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"senneval/datasets"
)

// LipschitzOptions configures the sampled local Lipschitz estimate of the
// explanation map.
type LipschitzOptions struct {
	// Calls is the number of candidate perturbations tried per point.
	Calls int
	// Eps bounds the perturbation radius per pixel.
	Eps float64
	// Points is how many dataset points get an estimate.
	Points int
	// Optim selects the candidate search: "random" or "grid".
	Optim string
	Seed  uint64
}

// Lipschitz estimates, for the first Points samples, the largest observed
// ratio ||theta(x)-theta(x')|| / ||x-x'|| over Calls perturbations of x.
func Lipschitz(ds datasets.Set, expl Explainer, opts LipschitzOptions) ([]float64, error) {
	if opts.Calls <= 0 || opts.Points <= 0 || opts.Eps <= 0 {
		return nil, fmt.Errorf("lipschitz: calls, points and eps must be positive")
	}
	switch opts.Optim {
	case "random", "grid":
	default:
		return nil, fmt.Errorf("lipschitz: unrecognized optim %q", opts.Optim)
	}

	n := opts.Points
	if n > len(ds) {
		n = len(ds)
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	estimates := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		x := ds[i].Pixels
		theta, _ := expl.PredictAndExplain(x)

		best := 0.0
		for c := 0; c < opts.Calls; c++ {
			xp := perturb(x, opts, c, rng)
			thetaP, _ := expl.PredictAndExplain(xp)
			if len(thetaP) != len(theta) {
				return nil, fmt.Errorf("sample %d: %w", i, ErrDimensionMismatch)
			}

			dx := floats.Distance(x, xp, 2)
			if dx == 0 {
				continue
			}
			dTheta := append([]float64(nil), theta...)
			floats.Sub(dTheta, thetaP)
			if ratio := floats.Norm(dTheta, 2) / dx; ratio > best {
				best = ratio
			}
		}
		estimates = append(estimates, best)
	}
	return estimates, nil
}

func perturb(x []float64, opts LipschitzOptions, call int, rng *rand.Rand) []float64 {
	xp := make([]float64, len(x))
	switch opts.Optim {
	case "grid":
		// Deterministic radii stepping outward to the eps boundary, sign
		// alternating by pixel index.
		r := opts.Eps * float64(call+1) / float64(opts.Calls)
		for i := range x {
			if i%2 == 0 {
				xp[i] = x[i] + r
			} else {
				xp[i] = x[i] - r
			}
		}
	default:
		for i := range x {
			xp[i] = x[i] + opts.Eps*(rng.Float64()*2-1)
		}
	}
	return xp
}
