package ml

import (
	"senneval/config"
	"senneval/datasets"
)

// ModelState is the load-or-train state machine. There are exactly two
// starting states and one transition each into StateReady.
type ModelState int

const (
	StateNeedsTraining ModelState = iota
	StateLoadable
	StateReady
)

func (s ModelState) String() string {
	switch s {
	case StateNeedsTraining:
		return "needs-training"
	case StateLoadable:
		return "loadable"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Plan decides the starting state. Loading wins over training; when neither
// is requested the checkpoint is loaded anyway, matching the reference
// behavior.
func Plan(loadModel, train bool) ModelState {
	if loadModel || !train {
		return StateLoadable
	}
	return StateNeedsTraining
}

// Resolve performs the single transition to a ready model: either loads the
// checkpoint or trains from scratch (saving the best checkpoint as it goes).
// A missing checkpoint in the loadable state is a fatal resource error.
func Resolve(cfg config.Config, data datasets.Data, checkpointPath string) (*SENN, error) {
	switch Plan(cfg.LoadModel, cfg.Train) {
	case StateLoadable:
		return LoadCheckpoint(checkpointPath, cfg)
	default:
		m := New(cfg, cfg.Seed)
		trainer := NewTrainer(m, cfg)
		if err := trainer.Train(data.Train, data.Valid, checkpointPath); err != nil {
			return nil, err
		}
		return m, nil
	}
}
