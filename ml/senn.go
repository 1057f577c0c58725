// Package ml implements the self-explaining classifier: a conceptizer
// producing concept activations h(x), a parametrizer producing relevance
// coefficients theta(x), and an additive scalar aggregator combining them
// into class logits.
package ml

import (
	"math"
	"math/rand"

	"senneval/config"
	"senneval/datasets"
)

// SENN is the assembled self-explaining model.
type SENN struct {
	concept  Conceptizer
	param    *parametrizer
	nclasses int
	htype    string
}

// New builds an untrained model from the validated config.
func New(cfg config.Config, seed int64) *SENN {
	rng := rand.New(rand.NewSource(seed))
	return &SENN{
		concept:  newConceptizer(cfg, rng),
		param:    newParametrizer(cfg.NConcepts, cfg.ThetaDim, cfg.PositiveTheta, rng),
		nclasses: config.NClasses,
		htype:    cfg.HType,
	}
}

func (m *SENN) NumConcepts() int { return m.concept.NumConcepts() }

// Logits aggregates theta and h: logit_c = sum_j theta[j][c] * h[j].
func (m *SENN) Logits(x []float64) []float64 {
	h := m.concept.Concepts(x)
	theta := m.param.Theta(x)
	return m.aggregate(theta, h)
}

func (m *SENN) aggregate(thetaFlat, h []float64) []float64 {
	logits := make([]float64, m.nclasses)
	td := m.param.thetaDim
	for j := 0; j < m.param.nconcepts; j++ {
		hj := h[j]
		row := j * td
		for c := 0; c < m.nclasses; c++ {
			logits[c] += thetaFlat[row+c] * hj
		}
	}
	return logits
}

// Predict returns the argmax class and the raw logits.
func (m *SENN) Predict(x []float64) (int, []float64) {
	logits := m.Logits(x)
	pred := 0
	for c, v := range logits {
		if v > logits[pred] {
			pred = c
		}
	}
	return pred, logits
}

// Explain returns the relevance vector for the predicted class (one
// coefficient per concept) along with the prediction. Pure: repeated calls
// on a fixed model and input yield identical results.
func (m *SENN) Explain(x []float64) (theta []float64, pred int) {
	h := m.concept.Concepts(x)
	thetaFlat := m.param.Theta(x)
	logits := m.aggregate(thetaFlat, h)
	pred = 0
	for c, v := range logits {
		if v > logits[pred] {
			pred = c
		}
	}
	theta = make([]float64, m.param.nconcepts)
	td := m.param.thetaDim
	for j := range theta {
		theta[j] = thetaFlat[j*td+pred]
	}
	return theta, pred
}

// ConceptActivation exposes h(x) directly.
func (m *SENN) ConceptActivation(x []float64) []float64 {
	return m.concept.Concepts(x)
}

// TrainStep runs one SGD step per sample in the batch and returns the
// average cross-entropy loss.
func (m *SENN) TrainStep(batch datasets.Set, lr float64) float64 {
	if len(batch) == 0 {
		return 0
	}
	td := m.param.thetaDim
	totalLoss := 0.0
	for _, s := range batch {
		h := m.concept.forwardTrain(s.Pixels)
		thetaFlat := m.param.forwardTrain(s.Pixels)
		logits := m.aggregate(thetaFlat, h)
		probs := softmax(logits)
		totalLoss += -math.Log(math.Max(probs[s.Label], 1e-12))

		dlogit := probs
		dlogit[s.Label] -= 1

		dTheta := make([]float64, len(thetaFlat))
		dH := make([]float64, len(h))
		for j := 0; j < m.param.nconcepts; j++ {
			row := j * td
			for c := 0; c < m.nclasses; c++ {
				dTheta[row+c] = dlogit[c] * h[j]
				dH[j] += dlogit[c] * thetaFlat[row+c]
			}
		}

		m.param.backward(dTheta, lr)
		m.concept.backward(dH, lr)
	}
	return totalLoss / float64(len(batch))
}

// RegularizeTheta nudges the parametrizer toward locally stable relevance
// coefficients with a finite-difference surrogate: theta is evaluated at x
// and at a perturbed copy, and the difference (shaped by the selected norm)
// is pushed back through the theta head only.
func (m *SENN) RegularizeTheta(x []float64, reg config.ThetaReg, lambda, eps float64, rng *rand.Rand) {
	if reg == config.ThetaRegUnreg {
		return
	}
	perturbed := make([]float64, len(x))
	for i := range x {
		perturbed[i] = x[i] + eps*rng.NormFloat64()
	}
	thetaP := m.param.Theta(perturbed)
	theta := m.param.forwardTrain(x)

	grad := make([]float64, len(theta))
	switch reg {
	case config.ThetaRegGrad1:
		for i := range grad {
			d := theta[i] - thetaP[i]
			if d > 0 {
				grad[i] = lambda
			} else if d < 0 {
				grad[i] = -lambda
			}
		}
	case config.ThetaRegGrad2:
		for i := range grad {
			grad[i] = 2 * lambda * (theta[i] - thetaP[i])
		}
	case config.ThetaRegGrad3:
		// Infinity-norm subgradient: only the largest deviation moves.
		best := 0
		for i := range theta {
			if math.Abs(theta[i]-thetaP[i]) > math.Abs(theta[best]-thetaP[best]) {
				best = i
			}
		}
		d := theta[best] - thetaP[best]
		if d > 0 {
			grad[best] = lambda
		} else if d < 0 {
			grad[best] = -lambda
		}
	case config.ThetaRegCrossLip:
		h := m.concept.Concepts(x)
		td := m.param.thetaDim
		for j := 0; j < m.param.nconcepts; j++ {
			row := j * td
			for c := 0; c < td; c++ {
				grad[row+c] = 2 * lambda * (theta[row+c] - thetaP[row+c]) * h[j]
			}
		}
	}
	// lambda already carries the step size.
	m.param.backward(grad, 1)
}

func (m *SENN) stateMap() map[string][]float64 {
	dst := make(map[string][]float64)
	m.concept.state(dst)
	m.param.state(dst)
	return dst
}

func (m *SENN) loadStateMap(src map[string][]float64) error {
	if err := m.concept.loadState(src); err != nil {
		return err
	}
	return m.param.loadState(src)
}
