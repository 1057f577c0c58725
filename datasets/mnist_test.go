package datasets

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIDXImages(t *testing.T, path string, imgs [][]byte) {
	t.Helper()
	var buf bytes.Buffer
	header := make([]byte, 16)
	binary.BigEndian.PutUint32(header[0:4], imageMagic)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(imgs)))
	binary.BigEndian.PutUint32(header[8:12], ImgSize)
	binary.BigEndian.PutUint32(header[12:16], ImgSize)
	buf.Write(header)
	for _, img := range imgs {
		buf.Write(img)
	}
	writeGz(t, path, buf.Bytes())
}

func writeIDXLabels(t *testing.T, path string, labels []byte) {
	t.Helper()
	var buf bytes.Buffer
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], labelMagic)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(labels)))
	buf.Write(header)
	buf.Write(labels)
	writeGz(t, path, buf.Bytes())
}

func writeGz(t *testing.T, path string, body []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write(body)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func constImage(v byte) []byte {
	img := make([]byte, NumPixels)
	for i := range img {
		img[i] = v
	}
	return img
}

func TestReadImagesNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imgs.gz")
	writeIDXImages(t, path, [][]byte{constImage(0), constImage(255)})

	samples, err := readImages(path, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.Len(t, samples[0].Pixels, NumPixels)

	assert.InDelta(t, (0-MeanPixel)/StdPixel, samples[0].Pixels[0], 1e-12)
	assert.InDelta(t, (1-MeanPixel)/StdPixel, samples[1].Pixels[0], 1e-12)
}

func TestReadImagesRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.gz")
	body := make([]byte, 16)
	binary.BigEndian.PutUint32(body[0:4], 0xdeadbeef)
	writeGz(t, path, body)

	_, err := readImages(path, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestReadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.gz")
	writeIDXLabels(t, path, []byte{3, 1, 4})

	labels, err := readLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 1, 4}, labels)
}

func TestSplitSizesAndDeterminism(t *testing.T) {
	full := make(Set, 100)
	for i := range full {
		full[i] = Sample{Pixels: []float64{float64(i)}, Label: i % 10}
	}

	train1, valid1 := Split(full, 0.1, true, 2008)
	require.Len(t, valid1, 10)
	require.Len(t, train1, 90)

	train2, valid2 := Split(full, 0.1, true, 2008)
	assert.Equal(t, valid1, valid2)
	assert.Equal(t, train1, train2)

	_, valid3 := Split(full, 0.1, true, 7)
	assert.NotEqual(t, valid1, valid3)
}

func TestSplitNoShuffleKeepsOrder(t *testing.T) {
	full := make(Set, 10)
	for i := range full {
		full[i] = Sample{Pixels: []float64{float64(i)}}
	}
	train, valid := Split(full, 0.2, false, 0)
	require.Len(t, valid, 2)
	assert.Equal(t, 0.0, valid[0].Pixels[0])
	assert.Equal(t, 1.0, valid[1].Pixels[0])
	assert.Equal(t, 2.0, train[0].Pixels[0])
}
