package ml

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"senneval/config"
	"senneval/datasets"
	"senneval/util"
)

// Trainer drives epoch-based SGD with per-epoch validation, keeping the
// best-accuracy checkpoint on disk.
type Trainer struct {
	model *SENN
	cfg   config.Config
	rng   *rand.Rand
}

func NewTrainer(m *SENN, cfg config.Config) *Trainer {
	return &Trainer{model: m, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Train runs the configured epochs and saves the best validation-accuracy
// model to checkpointPath.
func (t *Trainer) Train(train, valid datasets.Set, checkpointPath string) error {
	if len(train) == 0 {
		return fmt.Errorf("trainer: empty training set")
	}

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	bestAcc := math.Inf(-1)
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		start := time.Now()
		t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lastLoss float64
		total := 0
		batch := make(datasets.Set, 0, t.cfg.BatchSize)
		for _, idx := range order {
			batch = append(batch, train[idx])
			if len(batch) < t.cfg.BatchSize {
				continue
			}
			lastLoss = t.step(batch)
			total += len(batch)
			batch = batch[:0]
		}
		if len(batch) > 0 {
			lastLoss = t.step(batch)
			total += len(batch)
		}

		throughput := float64(total) / time.Since(start).Seconds()
		util.Logger.Infof("train epoch: %d, loss: %.4f, throughput: %.1f samples/sec", epoch, lastLoss, throughput)

		if len(valid) > 0 {
			loss, acc := t.Evaluate(valid)
			util.Logger.Infof("valid average loss: %.4f, accuracy: %.2f%%", loss, 100*acc)
			if acc > bestAcc {
				bestAcc = acc
				if err := Save(t.model, checkpointPath); err != nil {
					return err
				}
			}
		} else if err := Save(t.model, checkpointPath); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) step(batch datasets.Set) float64 {
	loss := t.model.TrainStep(batch, t.cfg.LR)
	if t.cfg.ThetaReg != config.ThetaRegUnreg {
		// One stability nudge per batch keeps the surrogate cheap.
		s := batch[t.rng.Intn(len(batch))]
		t.model.RegularizeTheta(s.Pixels, t.cfg.ThetaReg, t.cfg.ThetaRegLambda*t.cfg.LR, t.cfg.LipEps, t.rng)
	}
	return loss
}

// Evaluate computes average cross-entropy loss and accuracy on a set.
func (t *Trainer) Evaluate(set datasets.Set) (avgLoss, accuracy float64) {
	if len(set) == 0 {
		return 0, 0
	}
	correct := 0
	for _, s := range set {
		pred, logits := t.model.Predict(s.Pixels)
		probs := softmax(logits)
		avgLoss += -math.Log(math.Max(probs[s.Label], 1e-12))
		if pred == s.Label {
			correct++
		}
	}
	return avgLoss / float64(len(set)), float64(correct) / float64(len(set))
}
