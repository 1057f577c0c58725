package datasets

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"senneval/util"
)

const baseURL = "https://ossci-datasets.s3.amazonaws.com/mnist/"

const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

// Load returns the train/valid/test partitions, downloading the raw IDX
// files into <dir>/raw when absent. Download failures propagate.
func Load(dir string, validFraction float64, shuffle bool, seed int64, numWorkers int) (Data, error) {
	raw := filepath.Join(dir, "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		return Data{}, fmt.Errorf("create data dir: %w", err)
	}

	for _, name := range []string{trainImagesFile, trainLabelsFile, testImagesFile, testLabelsFile} {
		path := filepath.Join(raw, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := fetch(baseURL+name, path); err != nil {
			return Data{}, err
		}
	}

	trainImgs, err := readImages(filepath.Join(raw, trainImagesFile), numWorkers)
	if err != nil {
		return Data{}, err
	}
	trainLabels, err := readLabels(filepath.Join(raw, trainLabelsFile))
	if err != nil {
		return Data{}, err
	}
	testImgs, err := readImages(filepath.Join(raw, testImagesFile), numWorkers)
	if err != nil {
		return Data{}, err
	}
	testLabels, err := readLabels(filepath.Join(raw, testLabelsFile))
	if err != nil {
		return Data{}, err
	}

	full, err := zip(trainImgs, trainLabels)
	if err != nil {
		return Data{}, fmt.Errorf("train set: %w", err)
	}
	test, err := zip(testImgs, testLabels)
	if err != nil {
		return Data{}, fmt.Errorf("test set: %w", err)
	}

	train, valid := Split(full, validFraction, shuffle, seed)
	util.Logger.Infof("mnist loaded: train=%d valid=%d test=%d", len(train), len(valid), len(test))
	return Data{Train: train, Valid: valid, Test: test}, nil
}

func zip(imgs []Sample, labels []byte) (Set, error) {
	if len(imgs) != len(labels) {
		return nil, fmt.Errorf("have %d images but %d labels", len(imgs), len(labels))
	}
	for i := range imgs {
		imgs[i].Label = int(labels[i])
	}
	return imgs, nil
}

func fetch(url, path string) error {
	util.Logger.Infof("downloading %s", url)
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", url, resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// readImages parses a gzipped IDX3 image file into normalized samples.
// Normalization is fanned out over numWorkers goroutines; the split is an
// I/O-side optimization only, results are position-stable.
func readImages(path string, numWorkers int) ([]Sample, error) {
	data, err := readIDX(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("%s: truncated IDX header", path)
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	if magic != imageMagic {
		return nil, fmt.Errorf("%s: bad image magic 0x%08x", path, magic)
	}
	count := int(binary.BigEndian.Uint32(data[4:8]))
	rows := int(binary.BigEndian.Uint32(data[8:12]))
	cols := int(binary.BigEndian.Uint32(data[12:16]))
	if rows != ImgSize || cols != ImgSize {
		return nil, fmt.Errorf("%s: unexpected image size %dx%d", path, rows, cols)
	}
	body := data[16:]
	if len(body) < count*NumPixels {
		return nil, fmt.Errorf("%s: want %d images, body holds %d bytes", path, count, len(body))
	}

	samples := make([]Sample, count)
	if numWorkers < 1 {
		numWorkers = 1
	}
	var wg sync.WaitGroup
	chunk := (count + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > count {
			hi = count
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				px := make([]float64, NumPixels)
				base := i * NumPixels
				for j := 0; j < NumPixels; j++ {
					px[j] = Normalize(body[base+j])
				}
				samples[i] = Sample{Pixels: px}
			}
		}(lo, hi)
	}
	wg.Wait()
	return samples, nil
}

func readLabels(path string) ([]byte, error) {
	data, err := readIDX(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("%s: truncated IDX header", path)
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	if magic != labelMagic {
		return nil, fmt.Errorf("%s: bad label magic 0x%08x", path, magic)
	}
	count := int(binary.BigEndian.Uint32(data[4:8]))
	body := data[8:]
	if len(body) < count {
		return nil, fmt.Errorf("%s: want %d labels, body holds %d bytes", path, count, len(body))
	}
	return body[:count], nil
}

func readIDX(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
