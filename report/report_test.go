package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"senneval/config"
	"senneval/eval"
)

func TestDirNames(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	p, err := DirNames(base, cfg)
	require.NoError(t, err)
	for _, dir := range []string{p.Model, p.Log, p.Results} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.Contains(t, p.Model, cfg.Tag())
}

func sweepFixture() eval.SweepResult {
	return eval.SweepResult{
		Scales:   []float64{0.0, 0.1, 0.2},
		Raw:      map[float64][]float64{0.0: {1, 1}, 0.1: {2, 3}, 0.2: {4, 6}},
		Combined: map[float64][]float64{0.0: {0, 0}, 0.1: {1, 2}, 0.2: {2, 4}},
	}
}

func TestStabilityChartRenders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stability.png")
	require.NoError(t, StabilityChart(sweepFixture(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestHistogramChartRenders(t *testing.T) {
	h := eval.Histogram{
		Kind:     eval.HistTheta,
		Dividers: []float64{0, 1, 2, 3},
		Counts:   []float64{5, 2, 1},
		N:        8,
	}
	path := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, HistogramChart(h, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestHistogramChartRejectsUnknownKind(t *testing.T) {
	h := eval.Histogram{Kind: "g(x)", Dividers: []float64{0, 1}, Counts: []float64{1}}
	err := HistogramChart(h, filepath.Join(t.TempDir(), "bad.png"))
	require.Error(t, err)
}

func TestWriteDistancesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distances.gob")
	require.NoError(t, WriteDistances(sweepFixture(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
