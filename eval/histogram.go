package eval

import (
	"fmt"
	"math"
	"sort"

	"github.com/schollz/progressbar/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"senneval/datasets"
)

// HistKind selects which per-sample quantity gets pooled.
type HistKind string

const (
	HistH       HistKind = "h(x)"
	HistTheta   HistKind = "theta(x)"
	HistProduct HistKind = "theta(x)h(x)"
)

// ParseHistKind maps a flag value onto a histogram kind.
func ParseHistKind(s string) (HistKind, error) {
	switch HistKind(s) {
	case HistH, HistTheta, HistProduct:
		return HistKind(s), nil
	}
	return "", fmt.Errorf("unrecognized histogram kind %q", s)
}

// HistBins is the fixed bin count of the distribution reports.
const HistBins = 20

// Histogram is the pooled empirical distribution of one quantity.
type Histogram struct {
	Kind     HistKind
	Dividers []float64
	Counts   []float64
	// N is the number of pooled scalars.
	N int
}

// ValueHistogram flattens the chosen per-sample vectors over the whole set
// into one pooled collection of scalars and bins them into HistBins
// equal-width bins spanning [min, max].
func ValueHistogram(ds datasets.Set, expl Explainer, kind HistKind, progress bool) (Histogram, error) {
	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.New(len(ds))
	}

	var values []float64
	for i, s := range ds {
		var v []float64
		switch kind {
		case HistH:
			v = expl.ConceptActivation(s.Pixels)
		case HistTheta:
			v, _ = expl.PredictAndExplain(s.Pixels)
		case HistProduct:
			var err error
			v, err = depsVector(expl, s.Pixels, true)
			if err != nil {
				return Histogram{}, fmt.Errorf("sample %d: %w", i, err)
			}
		default:
			return Histogram{}, fmt.Errorf("unrecognized histogram kind %q", kind)
		}
		values = append(values, v...)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if len(values) == 0 {
		return Histogram{}, fmt.Errorf("histogram %s: no values pooled", kind)
	}

	sort.Float64s(values)
	lo, hi := values[0], values[len(values)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	dividers := make([]float64, HistBins+1)
	floats.Span(dividers, lo, hi)
	// Nudge the upper edge so the maximum lands in the last bin.
	dividers[HistBins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, values, nil)
	return Histogram{Kind: kind, Dividers: dividers, Counts: counts, N: len(values)}, nil
}
