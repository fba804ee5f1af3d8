package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/qsample"
	"github.com/happyhackingspace/qsample/sampler"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, qsample.DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"qsample.yaml", "method: greedy\nsampler:\n  outer_iter: 7\n  criterion: max\ncache:\n  ttl: 2m\n"},
		{"qsample.toml", "method = \"greedy\"\n[sampler]\nouter_iter = 7\ncriterion = \"max\"\n[cache]\nttl = \"2m\"\n"},
		{"qsample.json", `{"method":"greedy","sampler":{"outer_iter":7,"criterion":"max"},"cache":{"ttl":"2m"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.name, tt.content), nil)
			require.NoError(t, err)
			assert.Equal(t, qsample.MethodGreedy, cfg.Method)
			assert.Equal(t, 7, cfg.Sampler.OuterIter)
			assert.Equal(t, sampler.CriterionMax, cfg.Sampler.Criterion)
			assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
			// untouched keys keep their defaults
			assert.Equal(t, qsample.DefaultConfig().Sampler.InnerIter, cfg.Sampler.InnerIter)
			assert.Equal(t, uint64(171789909), cfg.Sampler.DirectionSeed)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "qsample.yaml", "folds: 4\nsampler:\n  outer_iter: 7\n  inner_iter: 9\n")
	t.Setenv("QSAMPLE_SAMPLER_OUTER_ITER", "11")
	t.Setenv("QSAMPLE_BOUNDARY_CUE_EPOCHS", "2")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--inner-iter", "13"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Folds)
	assert.Equal(t, 11, cfg.Sampler.OuterIter, "env overrides file")
	assert.Equal(t, 13, cfg.Sampler.InnerIter, "flag overrides file")
	assert.Equal(t, 2, cfg.Boundary.CueEpochs, "env overrides default")
	assert.Equal(t, qsample.MethodSample, cfg.Method, "unchanged flag keeps default")
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.yaml", "method: beam\n"), nil)
	assert.ErrorContains(t, err, "invalid config")

	_, err = Load(writeConfig(t, "bad.yaml", "sampler:\n  learning_rate: -1\n"), nil)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
