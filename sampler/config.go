package sampler

import (
	"fmt"
	"strings"
)

// Criterion aggregates the scores of predicted spans that overlap a candidate.
type Criterion string

const (
	CriterionSum  Criterion = "sum"
	CriterionMean Criterion = "mean"
	CriterionMax  Criterion = "max"
)

// ParseCriterion parses a criterion name case-insensitively.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(strings.ToLower(s)); c {
	case CriterionSum, CriterionMean, CriterionMax:
		return c, nil
	case "":
		return CriterionSum, nil
	}
	return "", fmt.Errorf("unknown overlap criterion %q", s)
}

// Config holds the sampler settings. It is copied into the Sampler at
// construction and never modified afterwards.
type Config struct {
	LearningRate      float64   `mapstructure:"learning_rate" json:"learning_rate"`
	LinearSampling    bool      `mapstructure:"linear_sampling" json:"linear_sampling"`
	UpdateForGoldSpan bool      `mapstructure:"update_for_gold_span" json:"update_for_gold_span"`
	Criterion         Criterion `mapstructure:"criterion" json:"criterion"`

	MaxNumTrials            int `mapstructure:"max_num_trials" json:"max_num_trials"`
	MaxLengthSampling       int `mapstructure:"max_length_sampling" json:"max_length_sampling"`
	MaxCueDistanceSampling  int `mapstructure:"max_cue_distance_sampling" json:"max_cue_distance_sampling"`
	MaxCueDistanceHeuristic int `mapstructure:"max_cue_distance_heuristic" json:"max_cue_distance_heuristic"`
	MaxLengthHeuristic      int `mapstructure:"max_length_heuristic" json:"max_length_heuristic"`

	BeginTemperature float64 `mapstructure:"begin_temperature" json:"begin_temperature"`
	EndTemperature   float64 `mapstructure:"end_temperature" json:"end_temperature"`

	MarginPositive float64 `mapstructure:"margin_positive" json:"margin_positive"`
	MarginNegative float64 `mapstructure:"margin_negative" json:"margin_negative"`

	OuterIter      int `mapstructure:"outer_iter" json:"outer_iter"`
	InnerIter      int `mapstructure:"inner_iter" json:"inner_iter"`
	PredictionIter int `mapstructure:"prediction_iter" json:"prediction_iter"`
	PredictEvery   int `mapstructure:"predict_every" json:"predict_every"`

	ShuffleTokens bool `mapstructure:"shuffle_tokens" json:"shuffle_tokens"`

	BeginSeed     uint64 `mapstructure:"begin_seed" json:"begin_seed"`
	EndSeed       uint64 `mapstructure:"end_seed" json:"end_seed"`
	DirectionSeed uint64 `mapstructure:"direction_seed" json:"direction_seed"`
	ShuffleSeed   uint64 `mapstructure:"shuffle_seed" json:"shuffle_seed"`
	HeuristicSeed uint64 `mapstructure:"heuristic_seed" json:"heuristic_seed"`
}

// DefaultConfig returns the default sampler settings.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.1,
		Criterion:    CriterionSum,

		MaxNumTrials:            10,
		MaxLengthSampling:       75,
		MaxCueDistanceSampling:  30,
		MaxCueDistanceHeuristic: 30,
		MaxLengthHeuristic:      50,

		BeginTemperature: 10,
		EndTemperature:   10,

		MarginPositive: 15,
		MarginNegative: 1,

		OuterIter:      30,
		InnerIter:      50,
		PredictionIter: 1000,
		PredictEvery:   10,

		BeginSeed:     123,
		EndSeed:       313,
		DirectionSeed: 171789909,
		ShuffleSeed:   171789909,
		HeuristicSeed: 181178,
	}
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	if _, err := ParseCriterion(string(c.Criterion)); err != nil {
		return err
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", c.LearningRate)
	}
	if c.BeginTemperature <= 0 || c.EndTemperature <= 0 {
		return fmt.Errorf("temperatures must be positive")
	}
	if c.MaxNumTrials < 1 {
		return fmt.Errorf("max num trials must be at least 1, got %d", c.MaxNumTrials)
	}
	if c.MaxLengthSampling < 0 || c.MaxCueDistanceSampling < 0 ||
		c.MaxCueDistanceHeuristic < 0 || c.MaxLengthHeuristic < 0 {
		return fmt.Errorf("window sizes must not be negative")
	}
	if c.OuterIter < 0 || c.InnerIter < 0 || c.PredictionIter < 0 || c.PredictEvery < 0 {
		return fmt.Errorf("iteration counts must not be negative")
	}
	return nil
}
