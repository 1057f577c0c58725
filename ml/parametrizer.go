package ml

import (
	"math/rand"

	"senneval/datasets"
)

const parametrizerHidden = 128

// parametrizer maps an input onto the relevance matrix theta, nconcepts
// rows by thetaDim columns, flattened row-major. With positive theta the
// output squashes through sigmoid, otherwise tanh.
type parametrizer struct {
	fc1, fc2  *linear
	nconcepts int
	thetaDim  int
	positive  bool

	lastX   []float64
	lastA1  []float64
	lastOut []float64
}

func newParametrizer(nconcepts, thetaDim int, positive bool, rng *rand.Rand) *parametrizer {
	return &parametrizer{
		fc1:       newLinear(datasets.NumPixels, parametrizerHidden, rng),
		fc2:       newLinear(parametrizerHidden, nconcepts*thetaDim, rng),
		nconcepts: nconcepts,
		thetaDim:  thetaDim,
		positive:  positive,
	}
}

func (p *parametrizer) run(x []float64) (a1, out []float64) {
	a1 = tanhVec(p.fc1.forward(x))
	z := p.fc2.forward(a1)
	if p.positive {
		return a1, sigmoidVec(z)
	}
	return a1, tanhVec(z)
}

// Theta computes the flattened relevance matrix without touching the
// training caches.
func (p *parametrizer) Theta(x []float64) []float64 {
	_, out := p.run(x)
	return out
}

func (p *parametrizer) forwardTrain(x []float64) []float64 {
	p.lastX = x
	p.lastA1, p.lastOut = p.run(x)
	return p.lastOut
}

func (p *parametrizer) backward(grad []float64, lr float64) {
	var g2 []float64
	if p.positive {
		g2 = sigmoidGrad(grad, p.lastOut)
	} else {
		g2 = tanhGrad(grad, p.lastOut)
	}
	g1 := p.fc2.backward(p.lastA1, g2, lr)
	g1 = tanhGrad(g1, p.lastA1)
	p.fc1.backward(p.lastX, g1, lr)
}

func (p *parametrizer) state(dst map[string][]float64) {
	p.fc1.state("param.fc1", dst)
	p.fc2.state("param.fc2", dst)
}

func (p *parametrizer) loadState(src map[string][]float64) error {
	if err := p.fc1.loadState("param.fc1", src); err != nil {
		return err
	}
	return p.fc2.loadState("param.fc2", src)
}
