package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLipschitzLinearMap(t *testing.T) {
	// theta(x) = 2x has Lipschitz constant exactly 2 everywhere.
	doubling := stubExplainer{
		thetaFn: func(x []float64) []float64 { return []float64{2 * x[0], 2 * x[1]} },
		hFn:     func(x []float64) []float64 { return []float64{1, 1} },
	}
	ds := smallSet(5)

	for _, optim := range []string{"random", "grid"} {
		est, err := Lipschitz(ds, doubling, LipschitzOptions{Calls: 4, Eps: 0.01, Points: 3, Optim: optim, Seed: 1})
		require.NoError(t, err)
		require.Len(t, est, 3)
		for _, v := range est {
			assert.InDelta(t, 2.0, v, 1e-9, "optim=%s", optim)
		}
	}
}

func TestLipschitzCapsAtDatasetSize(t *testing.T) {
	ds := smallSet(2)
	est, err := Lipschitz(ds, linearExplainer, LipschitzOptions{Calls: 2, Eps: 0.1, Points: 10, Optim: "random", Seed: 1})
	require.NoError(t, err)
	assert.Len(t, est, 2)
}

func TestLipschitzRejectsBadOptions(t *testing.T) {
	ds := smallSet(2)
	_, err := Lipschitz(ds, linearExplainer, LipschitzOptions{Calls: 0, Eps: 0.1, Points: 1, Optim: "random"})
	require.Error(t, err)

	_, err = Lipschitz(ds, linearExplainer, LipschitzOptions{Calls: 1, Eps: 0.1, Points: 1, Optim: "bayes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bayes")
}
