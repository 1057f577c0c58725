package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"senneval/datasets"
)

// stubExplainer lets tests pin theta and h exactly.
type stubExplainer struct {
	thetaFn func(x []float64) []float64
	hFn     func(x []float64) []float64
}

func (s stubExplainer) PredictAndExplain(x []float64) ([]float64, int) {
	return s.thetaFn(x), 0
}

func (s stubExplainer) ConceptActivation(x []float64) []float64 {
	return s.hFn(x)
}

func constExplainer(theta, h []float64) stubExplainer {
	return stubExplainer{
		thetaFn: func([]float64) []float64 { return append([]float64(nil), theta...) },
		hFn:     func([]float64) []float64 { return append([]float64(nil), h...) },
	}
}

// linearExplainer: theta(x) = [x0, x1], h(x) = [2, 1].
var linearExplainer = stubExplainer{
	thetaFn: func(x []float64) []float64 { return []float64{x[0], x[1]} },
	hFn:     func(x []float64) []float64 { return []float64{2, 1} },
}

func smallSet(n int) datasets.Set {
	set := make(datasets.Set, n)
	for i := range set {
		set[i] = datasets.Sample{Pixels: []float64{float64(i + 1), float64(i + 2)}, Label: 0}
	}
	return set
}

func TestStabilityLengthAndNonNegativity(t *testing.T) {
	ds := smallSet(5)
	for _, sigma := range []float64{0, 0.02, 0.2} {
		for _, combine := range []bool{false, true} {
			d, err := Stability(ds, linearExplainer, StabilityOptions{Scale: sigma, CombineWithActivation: combine, Seed: 1})
			require.NoError(t, err)
			require.Len(t, d, len(ds))
			for _, v := range d {
				assert.False(t, math.IsNaN(v))
				assert.GreaterOrEqual(t, v, 0.0)
			}
		}
	}
}

func TestStabilityKnownValuesCombined(t *testing.T) {
	// theta=[1,0], h=[2,1] everywhere: deps = [2,0] at every input, so even
	// the zero-noise reference point yields distance 0.
	ds := smallSet(3)
	d, err := Stability(ds, constExplainer([]float64{1, 0}, []float64{2, 1}), StabilityOptions{Scale: 0, CombineWithActivation: true, Seed: 1})
	require.NoError(t, err)
	require.Len(t, d, 3)
	for _, v := range d {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestStabilityZeroScaleComparesAgainstZeroInput(t *testing.T) {
	// Sigma 0 draws an all-zero noise tensor, so the noised explanation is
	// the one computed at the origin, not at x. The distance is therefore
	// ||deps(x) - deps(0)||, generally nonzero.
	ds := datasets.Set{{Pixels: []float64{3, 4}, Label: 0}}
	d, err := Stability(ds, linearExplainer, StabilityOptions{Scale: 0, CombineWithActivation: true, Seed: 1})
	require.NoError(t, err)
	require.Len(t, d, 1)

	// deps(x) = [3*2, 4*1] = [6,4]; deps(0) = [0,0].
	want := math.Sqrt(6*6 + 4*4)
	assert.InDelta(t, want, d[0], 1e-12)
	assert.Greater(t, d[0], 0.0)
}

func TestStabilityRawVariant(t *testing.T) {
	ds := datasets.Set{{Pixels: []float64{3, 4}, Label: 0}}
	d, err := Stability(ds, linearExplainer, StabilityOptions{Scale: 0, Seed: 1})
	require.NoError(t, err)
	// Raw variant ignores h: ||theta(x) - theta(0)|| = ||[3,4]||.
	assert.InDelta(t, 5.0, d[0], 1e-12)
}

func TestStabilityDeterminism(t *testing.T) {
	ds := smallSet(10)
	opts := StabilityOptions{Scale: 0.1, CombineWithActivation: true, Seed: 42}
	d1, err := Stability(ds, linearExplainer, opts)
	require.NoError(t, err)
	d2, err := Stability(ds, linearExplainer, opts)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	opts.Seed = 43
	d3, err := Stability(ds, linearExplainer, opts)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestStabilityPerturbOriginal(t *testing.T) {
	// With sigma 0 and perturbation of the original, the noised input is x
	// itself, so every distance collapses to zero.
	ds := smallSet(4)
	d, err := Stability(ds, linearExplainer, StabilityOptions{Scale: 0, CombineWithActivation: true, PerturbOriginal: true, Seed: 1})
	require.NoError(t, err)
	for _, v := range d {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestStabilityDimensionMismatch(t *testing.T) {
	bad := stubExplainer{
		thetaFn: func(x []float64) []float64 { return []float64{1, 2, 3} },
		hFn:     func(x []float64) []float64 { return []float64{1, 2} },
	}
	_, err := Stability(smallSet(1), bad, StabilityOptions{Scale: 0.1, CombineWithActivation: true, Seed: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestScales(t *testing.T) {
	s := Scales(0, 0.20, 0.02)
	require.Len(t, s, 11)
	assert.InDelta(t, 0.0, s[0], 1e-12)
	assert.InDelta(t, 0.20, s[len(s)-1], 1e-9)
}

func TestSweepShape(t *testing.T) {
	ds := smallSet(4)
	scales := []float64{0.0, 0.1}
	res, err := Sweep(ds, linearExplainer, scales, 7, false)
	require.NoError(t, err)

	require.Len(t, res.Raw, 2)
	require.Len(t, res.Combined, 2)
	for _, scale := range scales {
		assert.Len(t, res.Raw[scale], len(ds))
		assert.Len(t, res.Combined[scale], len(ds))
	}
}

func TestSummarizeConstantSequence(t *testing.T) {
	res := SweepResult{
		Scales: []float64{0.5},
		Raw:    map[float64][]float64{0.5: {5, 5, 5, 5}},
		Combined: map[float64][]float64{
			0.5: {1, 2, 3},
		},
	}
	c := res.Summarize(false)
	require.Len(t, c.Means, 1)
	assert.InDelta(t, 5.0, c.Means[0], 1e-12)
	assert.InDelta(t, 0.0, c.Stds[0], 1e-12)

	// Population std over {1,2,3} is sqrt(2/3).
	c2 := res.Summarize(true)
	assert.InDelta(t, 2.0, c2.Means[0], 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3.0), c2.Stds[0], 1e-12)
}

func TestValueHistogramPoolsAllElements(t *testing.T) {
	ds := smallSet(3)
	h, err := ValueHistogram(ds, linearExplainer, HistTheta, false)
	require.NoError(t, err)
	assert.Equal(t, 3*2, h.N)
	require.Len(t, h.Counts, HistBins)
	require.Len(t, h.Dividers, HistBins+1)
	assert.InDelta(t, float64(h.N), floats.Sum(h.Counts), 1e-12)
}

func TestValueHistogramConstantValues(t *testing.T) {
	ds := smallSet(2)
	h, err := ValueHistogram(ds, constExplainer([]float64{1, 1}, []float64{1, 1}), HistProduct, false)
	require.NoError(t, err)
	assert.InDelta(t, float64(h.N), floats.Sum(h.Counts), 1e-12)
}

func TestParseHistKind(t *testing.T) {
	k, err := ParseHistKind("h(x)")
	require.NoError(t, err)
	assert.Equal(t, HistH, k)
	_, err = ParseHistKind("g(x)")
	require.Error(t, err)
}
