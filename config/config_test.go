package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThetaReg(t *testing.T) {
	for _, s := range []string{"", "unreg", "none"} {
		reg, err := ParseThetaReg(s)
		require.NoError(t, err)
		assert.Equal(t, ThetaRegUnreg, reg)
	}
	reg, err := ParseThetaReg("grad2")
	require.NoError(t, err)
	assert.Equal(t, ThetaRegGrad2, reg)

	_, err = ParseThetaReg("grad4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grad4")
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	cfg := Default()
	cfg.ThetaRegType = "bogus"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.HType = "rnn"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Optim = "bayes"
	require.Error(t, cfg.Validate())
}

func TestValidateInputHTypePinsConcepts(t *testing.T) {
	cfg := Default()
	cfg.HType = HTypeInput
	cfg.NConcepts = 5
	require.NoError(t, cfg.Validate())
	assert.Equal(t, NumPixels+1, cfg.NConcepts)
}

func TestValidateDefaultsThetaDim(t *testing.T) {
	cfg := Default()
	cfg.ThetaDim = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, NClasses, cfg.ThetaDim)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	body := "h_type: cnn\nnconcepts: 8\nepochs: 3\ntheta_reg_type: grad1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, HTypeCNN, cfg.HType)
	assert.Equal(t, 8, cfg.NConcepts)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, ThetaRegGrad1, cfg.ThetaReg)
	// Untouched keys keep their defaults.
	assert.Equal(t, 64, cfg.BatchSize)
}

func TestTag(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fcc_h5_cd10_th10_regunreg", cfg.Tag())

	cfg.PositiveTheta = true
	assert.Equal(t, "fcc_h5_cd10_th10_regunreg_pos", cfg.Tag())
}
