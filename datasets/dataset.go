// Package datasets supplies the normalized MNIST collections used for
// training and for the post-training stability experiments.
package datasets

const (
	ImgSize   = 28
	NumPixels = ImgSize * ImgSize

	// Per-channel normalization applied to every pixel.
	MeanPixel = 0.1307
	StdPixel  = 0.3081
)

// Sample is one normalized image with its class label. Immutable once
// loaded.
type Sample struct {
	Pixels []float64
	Label  int
}

// Set is an indexable collection of samples.
type Set []Sample

// Data holds the three partitions. Test is never split.
type Data struct {
	Train Set
	Valid Set
	Test  Set
}

// Normalize maps a raw byte pixel into the model's input range.
func Normalize(b byte) float64 {
	return (float64(b)/255.0 - MeanPixel) / StdPixel
}
