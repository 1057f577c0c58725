package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linear is a fully connected layer. Weights are out×in.
type linear struct {
	w   *mat.Dense
	b   *mat.VecDense
	in  int
	out int
}

func newLinear(in, out int, rng *rand.Rand) *linear {
	scale := math.Sqrt(1.0 / float64(in))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return &linear{
		w:   mat.NewDense(out, in, data),
		b:   mat.NewVecDense(out, nil),
		in:  in,
		out: out,
	}
}

func (l *linear) forward(x []float64) []float64 {
	y := mat.NewVecDense(l.out, nil)
	y.MulVec(l.w, mat.NewVecDense(l.in, x))
	y.AddVec(y, l.b)
	out := make([]float64, l.out)
	copy(out, y.RawVector().Data)
	return out
}

// backward applies one SGD step for the cached input x and returns the
// gradient with respect to x.
func (l *linear) backward(x, grad []float64, lr float64) []float64 {
	gv := mat.NewVecDense(l.out, grad)

	gin := mat.NewVecDense(l.in, nil)
	gin.MulVec(l.w.T(), gv)

	var outer mat.Dense
	outer.Outer(lr, gv, mat.NewVecDense(l.in, x))
	l.w.Sub(l.w, &outer)
	l.b.AddScaledVec(l.b, -lr, gv)

	out := make([]float64, l.in)
	copy(out, gin.RawVector().Data)
	return out
}

func (l *linear) state(prefix string, dst map[string][]float64) {
	dst[prefix+".w"] = append([]float64(nil), l.w.RawMatrix().Data...)
	dst[prefix+".b"] = append([]float64(nil), l.b.RawVector().Data...)
}

func (l *linear) loadState(prefix string, src map[string][]float64) error {
	w, ok := src[prefix+".w"]
	if !ok || len(w) != l.in*l.out {
		return fmt.Errorf("checkpoint weight %s.w missing or wrong size", prefix)
	}
	b, ok := src[prefix+".b"]
	if !ok || len(b) != l.out {
		return fmt.Errorf("checkpoint weight %s.b missing or wrong size", prefix)
	}
	copy(l.w.RawMatrix().Data, w)
	copy(l.b.RawVector().Data, b)
	return nil
}

// conv is a square valid convolution with stride. Weights are laid out
// [outC][inC][k][k].
type conv struct {
	inC, outC int
	k, stride int
	inW, outW int
	w         []float64
	b         []float64
}

func newConv(inC, outC, k, stride, inW int, rng *rand.Rand) *conv {
	fanIn := inC * k * k
	scale := math.Sqrt(1.0 / float64(fanIn))
	w := make([]float64, outC*inC*k*k)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * scale
	}
	return &conv{
		inC: inC, outC: outC,
		k: k, stride: stride,
		inW: inW, outW: (inW-k)/stride + 1,
		w: w,
		b: make([]float64, outC),
	}
}

func (c *conv) wIdx(oc, ic, ky, kx int) int {
	return ((oc*c.inC+ic)*c.k+ky)*c.k + kx
}

// forward computes pre-activation feature maps, flattened [outC][outW][outW].
func (c *conv) forward(in []float64) []float64 {
	out := make([]float64, c.outC*c.outW*c.outW)
	for oc := 0; oc < c.outC; oc++ {
		for oy := 0; oy < c.outW; oy++ {
			for ox := 0; ox < c.outW; ox++ {
				sum := c.b[oc]
				for ic := 0; ic < c.inC; ic++ {
					base := ic * c.inW * c.inW
					for ky := 0; ky < c.k; ky++ {
						row := base + (oy*c.stride+ky)*c.inW + ox*c.stride
						for kx := 0; kx < c.k; kx++ {
							sum += c.w[c.wIdx(oc, ic, ky, kx)] * in[row+kx]
						}
					}
				}
				out[(oc*c.outW+oy)*c.outW+ox] = sum
			}
		}
	}
	return out
}

// backward applies one SGD step for the cached input and pre-activation
// gradient, returning the gradient with respect to the input maps.
func (c *conv) backward(in, grad []float64, lr float64) []float64 {
	gin := make([]float64, c.inC*c.inW*c.inW)
	for oc := 0; oc < c.outC; oc++ {
		for oy := 0; oy < c.outW; oy++ {
			for ox := 0; ox < c.outW; ox++ {
				g := grad[(oc*c.outW+oy)*c.outW+ox]
				if g == 0 {
					continue
				}
				c.b[oc] -= lr * g
				for ic := 0; ic < c.inC; ic++ {
					base := ic * c.inW * c.inW
					for ky := 0; ky < c.k; ky++ {
						row := base + (oy*c.stride+ky)*c.inW + ox*c.stride
						for kx := 0; kx < c.k; kx++ {
							wi := c.wIdx(oc, ic, ky, kx)
							gin[row+kx] += g * c.w[wi]
							c.w[wi] -= lr * g * in[row+kx]
						}
					}
				}
			}
		}
	}
	return gin
}

func (c *conv) state(prefix string, dst map[string][]float64) {
	dst[prefix+".w"] = append([]float64(nil), c.w...)
	dst[prefix+".b"] = append([]float64(nil), c.b...)
}

func (c *conv) loadState(prefix string, src map[string][]float64) error {
	w, ok := src[prefix+".w"]
	if !ok || len(w) != len(c.w) {
		return fmt.Errorf("checkpoint weight %s.w missing or wrong size", prefix)
	}
	b, ok := src[prefix+".b"]
	if !ok || len(b) != len(c.b) {
		return fmt.Errorf("checkpoint weight %s.b missing or wrong size", prefix)
	}
	copy(c.w, w)
	copy(c.b, b)
	return nil
}

func tanhVec(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Tanh(x)
	}
	return out
}

// tanhGrad chains grad through tanh given the layer output.
func tanhGrad(grad, out []float64) []float64 {
	g := make([]float64, len(grad))
	for i := range grad {
		g[i] = grad[i] * (1 - out[i]*out[i])
	}
	return g
}

func sigmoidVec(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = 1 / (1 + math.Exp(-x))
	}
	return out
}

func sigmoidGrad(grad, out []float64) []float64 {
	g := make([]float64, len(grad))
	for i := range grad {
		g[i] = grad[i] * out[i] * (1 - out[i])
	}
	return g
}

func reluVec(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

// reluGrad masks grad by the pre-activation sign.
func reluGrad(grad, pre []float64) []float64 {
	g := make([]float64, len(grad))
	for i := range grad {
		if pre[i] > 0 {
			g[i] = grad[i]
		}
	}
	return g
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		e := math.Exp(v - maxLogit)
		out[i] = e
		sum += e
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}
