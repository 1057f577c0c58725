package ml

import (
	"encoding/gob"
	"fmt"
	"os"

	"senneval/config"
	"senneval/util"
)

// CheckpointName is the file the trainer writes its best model to.
const CheckpointName = "model_best.gob"

type checkpointState struct {
	HType         string
	NConcepts     int
	ThetaDim      int
	NClasses      int
	PositiveTheta bool
	Weights       map[string][]float64
}

// Save writes the model weights to path.
func Save(m *SENN, path string) error {
	util.Logger.Infof("saving model to %s", path)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer f.Close()

	st := checkpointState{
		HType:         m.htype,
		NConcepts:     m.concept.NumConcepts(),
		ThetaDim:      m.param.thetaDim,
		NClasses:      m.nclasses,
		PositiveTheta: m.param.positive,
		Weights:       m.stateMap(),
	}
	if err := gob.NewEncoder(f).Encode(st); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores a model from path. The checkpoint must have been
// written under the same architecture config.
func LoadCheckpoint(path string, cfg config.Config) (*SENN, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer f.Close()

	var st checkpointState
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}

	m := New(cfg, 0)
	if st.HType != m.htype || st.NConcepts != m.concept.NumConcepts() ||
		st.ThetaDim != m.param.thetaDim || st.PositiveTheta != m.param.positive {
		return nil, fmt.Errorf("checkpoint %s was trained under a different architecture (%s/h%d/th%d)",
			path, st.HType, st.NConcepts, st.ThetaDim)
	}
	if err := m.loadStateMap(st.Weights); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	util.Logger.Infof("loaded model from %s", path)
	return m, nil
}
