package qsample

import (
	"fmt"
	"strings"

	"github.com/happyhackingspace/qsample/crf"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/model"
	"github.com/happyhackingspace/qsample/sampler"
)

// Method selects how content spans are predicted.
type Method string

const (
	// MethodSample trains the span sampler.
	MethodSample Method = "sample"
	// MethodGreedy predicts with the cue heuristic alone.
	MethodGreedy Method = "greedy"
	// MethodCRF tags spans with a linear-chain CRF.
	MethodCRF Method = "crf"
)

// ParseMethod parses a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case MethodSample, MethodGreedy, MethodCRF:
		return m, nil
	case "":
		return MethodSample, nil
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// Config holds every setting of a pipeline.
type Config struct {
	Sampler  sampler.Config       `mapstructure:"sampler" json:"sampler"`
	Boundary model.BoundaryConfig `mapstructure:"boundary" json:"boundary"`
	CRF      crf.TrainerConfig    `mapstructure:"crf" json:"crf"`
	Cache    features.CacheConfig `mapstructure:"cache" json:"cache"`

	Method Method `mapstructure:"method" json:"method"`
	// Folds is the number of cross-validation folds used by Evaluate.
	Folds int `mapstructure:"folds" json:"folds"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Sampler:  sampler.DefaultConfig(),
		Boundary: model.DefaultBoundaryConfig(),
		CRF:      crf.DefaultTrainerConfig(),
		Cache:    features.DefaultCacheConfig(),
		Method:   MethodSample,
		Folds:    10,
	}
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if c.Folds < 2 {
		return fmt.Errorf("folds must be at least 2, got %d", c.Folds)
	}
	if err := c.Sampler.Validate(); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	if err := c.Boundary.Validate(); err != nil {
		return fmt.Errorf("boundary: %w", err)
	}
	if c.CRF.MaxIterations < 1 {
		return fmt.Errorf("crf: max iterations must be at least 1, got %d", c.CRF.MaxIterations)
	}
	if c.CRF.C1 < 0 || c.CRF.C2 < 0 {
		return fmt.Errorf("crf: regularization must not be negative")
	}
	return nil
}
