package ml

import (
	"math/rand"

	"senneval/config"
	"senneval/datasets"
)

// Conceptizer produces the concept activation vector h(x). Concepts is the
// pure inference path; forwardTrain/backward are the training path and keep
// per-call caches, so a conceptizer must not be trained from more than one
// goroutine.
type Conceptizer interface {
	Concepts(x []float64) []float64
	NumConcepts() int

	forwardTrain(x []float64) []float64
	backward(grad []float64, lr float64)
	state(dst map[string][]float64)
	loadState(src map[string][]float64) error
}

// inputConceptizer uses the raw pixels themselves as concepts, plus a fixed
// bias slot, so every explanation is a per-pixel relevance map.
type inputConceptizer struct{}

func (inputConceptizer) NumConcepts() int { return datasets.NumPixels + 1 }

func (inputConceptizer) Concepts(x []float64) []float64 {
	h := make([]float64, len(x)+1)
	copy(h, x)
	h[len(x)] = 1
	return h
}

func (c inputConceptizer) forwardTrain(x []float64) []float64 { return c.Concepts(x) }
func (inputConceptizer) backward([]float64, float64)          {}
func (inputConceptizer) state(map[string][]float64)           {}
func (inputConceptizer) loadState(map[string][]float64) error { return nil }

// fccConceptizer is a two-layer tanh MLP. The hidden width scales with
// concept_dim so the knob keeps its original meaning.
type fccConceptizer struct {
	fc1, fc2  *linear
	nconcepts int

	lastX  []float64
	lastA1 []float64
	lastH  []float64
}

func newFCCConceptizer(nconcepts, conceptDim int, rng *rand.Rand) *fccConceptizer {
	hidden := nconcepts * conceptDim
	return &fccConceptizer{
		fc1:       newLinear(datasets.NumPixels, hidden, rng),
		fc2:       newLinear(hidden, nconcepts, rng),
		nconcepts: nconcepts,
	}
}

func (c *fccConceptizer) NumConcepts() int { return c.nconcepts }

func (c *fccConceptizer) run(x []float64) (a1, h []float64) {
	a1 = tanhVec(c.fc1.forward(x))
	h = tanhVec(c.fc2.forward(a1))
	return a1, h
}

func (c *fccConceptizer) Concepts(x []float64) []float64 {
	_, h := c.run(x)
	return h
}

func (c *fccConceptizer) forwardTrain(x []float64) []float64 {
	c.lastX = x
	c.lastA1, c.lastH = c.run(x)
	return c.lastH
}

func (c *fccConceptizer) backward(grad []float64, lr float64) {
	g2 := tanhGrad(grad, c.lastH)
	g1 := c.fc2.backward(c.lastA1, g2, lr)
	g1 = tanhGrad(g1, c.lastA1)
	c.fc1.backward(c.lastX, g1, lr)
}

func (c *fccConceptizer) state(dst map[string][]float64) {
	c.fc1.state("concept.fc1", dst)
	c.fc2.state("concept.fc2", dst)
}

func (c *fccConceptizer) loadState(src map[string][]float64) error {
	if err := c.fc1.loadState("concept.fc1", src); err != nil {
		return err
	}
	return c.fc2.loadState("concept.fc2", src)
}

// cnnConceptizer stacks two stride-2 valid convolutions (28→12→4), global
// average pools each feature map and squashes through tanh, one concept per
// output channel.
type cnnConceptizer struct {
	conv1, conv2 *conv
	nconcepts    int

	lastX    []float64
	lastPre1 []float64
	lastAct1 []float64
	lastPre2 []float64
	lastH    []float64
}

func newCNNConceptizer(nconcepts, conceptDim int, rng *rand.Rand) *cnnConceptizer {
	c1 := newConv(1, conceptDim, 5, 2, datasets.ImgSize, rng)
	c2 := newConv(conceptDim, nconcepts, 5, 2, c1.outW, rng)
	return &cnnConceptizer{conv1: c1, conv2: c2, nconcepts: nconcepts}
}

func (c *cnnConceptizer) NumConcepts() int { return c.nconcepts }

func (c *cnnConceptizer) run(x []float64) (pre1, act1, pre2, h []float64) {
	pre1 = c.conv1.forward(x)
	act1 = reluVec(pre1)
	pre2 = c.conv2.forward(act1)
	act2 := reluVec(pre2)

	area := c.conv2.outW * c.conv2.outW
	pooled := make([]float64, c.nconcepts)
	for j := 0; j < c.nconcepts; j++ {
		sum := 0.0
		for p := 0; p < area; p++ {
			sum += act2[j*area+p]
		}
		pooled[j] = sum / float64(area)
	}
	return pre1, act1, pre2, tanhVec(pooled)
}

func (c *cnnConceptizer) Concepts(x []float64) []float64 {
	_, _, _, h := c.run(x)
	return h
}

func (c *cnnConceptizer) forwardTrain(x []float64) []float64 {
	c.lastX = x
	c.lastPre1, c.lastAct1, c.lastPre2, c.lastH = c.run(x)
	return c.lastH
}

func (c *cnnConceptizer) backward(grad []float64, lr float64) {
	gPool := tanhGrad(grad, c.lastH)

	area := c.conv2.outW * c.conv2.outW
	gAct2 := make([]float64, c.nconcepts*area)
	for j := 0; j < c.nconcepts; j++ {
		g := gPool[j] / float64(area)
		for p := 0; p < area; p++ {
			gAct2[j*area+p] = g
		}
	}

	gPre2 := reluGrad(gAct2, c.lastPre2)
	gAct1 := c.conv2.backward(c.lastAct1, gPre2, lr)
	gPre1 := reluGrad(gAct1, c.lastPre1)
	c.conv1.backward(c.lastX, gPre1, lr)
}

func (c *cnnConceptizer) state(dst map[string][]float64) {
	c.conv1.state("concept.conv1", dst)
	c.conv2.state("concept.conv2", dst)
}

func (c *cnnConceptizer) loadState(src map[string][]float64) error {
	if err := c.conv1.loadState("concept.conv1", src); err != nil {
		return err
	}
	return c.conv2.loadState("concept.conv2", src)
}

func newConceptizer(cfg config.Config, rng *rand.Rand) Conceptizer {
	switch cfg.HType {
	case config.HTypeInput:
		return inputConceptizer{}
	case config.HTypeCNN:
		return newCNNConceptizer(cfg.NConcepts, cfg.ConceptDim, rng)
	default:
		return newFCCConceptizer(cfg.NConcepts, cfg.ConceptDim, rng)
	}
}
