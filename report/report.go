// Package report owns the run's output surface: the results directory
// layout, the rendered charts and the optional distance dump.
package report

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"senneval/config"
	"senneval/eval"
	"senneval/util"
)

// Paths is the per-run directory layout under the results base.
type Paths struct {
	Model   string
	Log     string
	Results string
}

// DirNames derives and creates the run's directories from the config tag.
func DirNames(base string, cfg config.Config) (Paths, error) {
	root := filepath.Join(base, "mnist", cfg.Tag())
	p := Paths{
		Model:   filepath.Join(root, "models"),
		Log:     filepath.Join(root, "logs"),
		Results: filepath.Join(root, "results"),
	}
	for _, dir := range []string{p.Model, p.Log, p.Results} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return p, nil
}

// WriteDistances dumps the full sweep result so the distances can be
// re-aggregated without rerunning the model.
func WriteDistances(res eval.SweepResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create distances file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(res); err != nil {
		return fmt.Errorf("encode distances: %w", err)
	}
	util.Logger.Infof("wrote distances to %s", path)
	return nil
}
