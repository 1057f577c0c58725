package ml

// Explainer is the inference-only view of a trained model used by the
// evaluation procedures. All methods are pure: no parameter updates, no
// state carried between calls.
type Explainer struct {
	m *SENN
}

func NewExplainer(m *SENN) *Explainer {
	return &Explainer{m: m}
}

// PredictAndExplain returns the relevance coefficients for the predicted
// class and the prediction itself.
func (e *Explainer) PredictAndExplain(x []float64) ([]float64, int) {
	return e.m.Explain(x)
}

// ConceptActivation returns h(x).
func (e *Explainer) ConceptActivation(x []float64) []float64 {
	return e.m.ConceptActivation(x)
}
