package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ThetaReg selects the trainer variant. Resolved once from the string flag
// during Validate so an unrecognized value fails at startup, not mid-run.
type ThetaReg int

const (
	ThetaRegUnreg ThetaReg = iota
	ThetaRegGrad1
	ThetaRegGrad2
	ThetaRegGrad3
	ThetaRegCrossLip
)

func (t ThetaReg) String() string {
	switch t {
	case ThetaRegUnreg:
		return "unreg"
	case ThetaRegGrad1:
		return "grad1"
	case ThetaRegGrad2:
		return "grad2"
	case ThetaRegGrad3:
		return "grad3"
	case ThetaRegCrossLip:
		return "crosslip"
	}
	return fmt.Sprintf("ThetaReg(%d)", int(t))
}

// ParseThetaReg maps the flag value onto the trainer variant. The empty
// string, "unreg" and "none" all mean no regularization.
func ParseThetaReg(s string) (ThetaReg, error) {
	switch s {
	case "", "unreg", "none":
		return ThetaRegUnreg, nil
	case "grad1":
		return ThetaRegGrad1, nil
	case "grad2":
		return ThetaRegGrad2, nil
	case "grad3":
		return ThetaRegGrad3, nil
	case "crosslip":
		return ThetaRegCrossLip, nil
	}
	return 0, fmt.Errorf("unrecognized theta_reg_type %q", s)
}

// Concept extraction architectures.
const (
	HTypeInput = "input"
	HTypeCNN   = "cnn"
	HTypeFCC   = "fcc"
)

const (
	ImgSize   = 28
	NumPixels = ImgSize * ImgSize
	NClasses  = 10
)

// Config captures every knob of a run. It is built once (file, then flag
// overrides, then Validate) and passed by value afterwards.
type Config struct {
	HType          string  `yaml:"h_type"`
	NConcepts      int     `yaml:"nconcepts"`
	ConceptDim     int     `yaml:"concept_dim"`
	ThetaDim       int     `yaml:"theta_dim"`
	PositiveTheta  bool    `yaml:"positive_theta"`
	ThetaRegType   string  `yaml:"theta_reg_type"`
	ThetaRegLambda float64 `yaml:"theta_reg_lambda"`

	LoadModel bool `yaml:"load_model"`
	Train     bool `yaml:"train"`

	BatchSize  int     `yaml:"batch_size"`
	NumWorkers int     `yaml:"num_workers"`
	Epochs     int     `yaml:"epochs"`
	LR         float64 `yaml:"lr"`

	ValidFraction float64 `yaml:"valid_fraction"`
	Shuffle       bool    `yaml:"shuffle"`
	Seed          int64   `yaml:"seed"`
	NoiseSeed     uint64  `yaml:"noise_seed"`

	LipCalls  int     `yaml:"lip_calls"`
	LipEps    float64 `yaml:"lip_eps"`
	LipPoints int     `yaml:"lip_points"`
	Optim     string  `yaml:"optim"`

	DataDir       string `yaml:"data_dir"`
	ResultsDir    string `yaml:"results_dir"`
	SaveDistances bool   `yaml:"save_distances"`

	// Resolved by Validate from ThetaRegType.
	ThetaReg ThetaReg `yaml:"-"`
}

// Default mirrors the reference run: fcc conceptizer, 5 concepts, vanilla
// training, 10% validation split under seed 2008.
func Default() Config {
	return Config{
		HType:          HTypeFCC,
		NConcepts:      5,
		ConceptDim:     10,
		ThetaDim:       NClasses,
		ThetaRegLambda: 1e-4,
		Train:          true,
		BatchSize:      64,
		NumWorkers:     1,
		Epochs:         10,
		LR:             0.01,
		ValidFraction:  0.1,
		Shuffle:        true,
		Seed:           2008,
		NoiseSeed:      2008,
		LipCalls:       10,
		LipEps:         0.01,
		LipPoints:      100,
		Optim:          "random",
		DataDir:        "data/MNIST",
		ResultsDir:     "out",
	}
}

// Load reads a YAML config on top of the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate resolves enums and enforces runnable dimensions. For the input
// conceptizer the concept count is pinned to the pixel count plus a bias
// slot, matching the reference implementation.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	reg, err := ParseThetaReg(c.ThetaRegType)
	if err != nil {
		return err
	}
	c.ThetaReg = reg

	switch c.HType {
	case HTypeInput:
		c.NConcepts = NumPixels + 1
	case HTypeCNN, HTypeFCC:
	default:
		return fmt.Errorf("unrecognized h_type %q", c.HType)
	}

	if c.ThetaDim <= 0 {
		c.ThetaDim = NClasses
	}
	if c.NConcepts <= 0 {
		return fmt.Errorf("nconcepts must be > 0 (got %d)", c.NConcepts)
	}
	if c.ConceptDim <= 0 {
		return fmt.Errorf("concept_dim must be > 0 (got %d)", c.ConceptDim)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %g)", c.LR)
	}
	if c.ValidFraction < 0 || c.ValidFraction >= 1 {
		return fmt.Errorf("valid_fraction must be in [0,1) (got %g)", c.ValidFraction)
	}
	switch c.Optim {
	case "random", "grid":
	default:
		return fmt.Errorf("unrecognized optim %q", c.Optim)
	}
	return nil
}

// Tag names the run for directory layout, one token per knob that changes
// the model.
func (c Config) Tag() string {
	tag := fmt.Sprintf("%s_h%d_cd%d_th%d_reg%s", c.HType, c.NConcepts, c.ConceptDim, c.ThetaDim, c.ThetaReg)
	if c.PositiveTheta {
		tag += "_pos"
	}
	return tag
}
