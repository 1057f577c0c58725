package datasets

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ReadImageFile loads a grayscale image from disk and normalizes it into
// model input form. The image must already be 28x28.
func ReadImageFile(path string) ([]float64, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("read image %s: empty or unreadable", path)
	}
	if img.Rows() != ImgSize || img.Cols() != ImgSize {
		return nil, fmt.Errorf("image %s is %dx%d, want %dx%d", path, img.Cols(), img.Rows(), ImgSize, ImgSize)
	}
	px := make([]float64, NumPixels)
	for y := 0; y < ImgSize; y++ {
		for x := 0; x < ImgSize; x++ {
			px[y*ImgSize+x] = Normalize(img.GetUCharAt(y, x))
		}
	}
	return px, nil
}
