// Package config loads pipeline settings from a file, the environment and
// command-line flags.
//
// Sources are applied in increasing precedence: built-in defaults, the
// config file, QSAMPLE_ environment variables and changed flags. Nested
// keys map to variables by upper-casing and replacing dots, so
// sampler.outer_iter is read from QSAMPLE_SAMPLER_OUTER_ITER.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/happyhackingspace/qsample"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "QSAMPLE"

// flagKeys maps the flags registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"method":          "method",
	"folds":           "folds",
	"outer-iter":      "sampler.outer_iter",
	"inner-iter":      "sampler.inner_iter",
	"prediction-iter": "sampler.prediction_iter",
	"learning-rate":   "sampler.learning_rate",
	"criterion":       "sampler.criterion",
	"linear-sampling": "sampler.linear_sampling",
	"jackknifing":     "boundary.jackknifing",
}

// RegisterFlags adds the tunable settings to fs with their default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := qsample.DefaultConfig()
	fs.String("method", string(d.Method), "span prediction method: sample, greedy or crf")
	fs.Int("folds", d.Folds, "number of cross-validation folds")
	fs.Int("outer-iter", d.Sampler.OuterIter, "sampler training epochs")
	fs.Int("inner-iter", d.Sampler.InnerIter, "sampling passes per document and epoch")
	fs.Int("prediction-iter", d.Sampler.PredictionIter, "sampling passes per document at prediction time")
	fs.Float64("learning-rate", d.Sampler.LearningRate, "span model learning rate")
	fs.String("criterion", string(d.Sampler.Criterion), "overlap aggregation: sum, mean or max")
	fs.Bool("linear-sampling", d.Sampler.LinearSampling, "propose candidates from predicted cues")
	fs.Bool("jackknifing", d.Boundary.Jackknifing, "label training cues with held-out classifiers")
}

// Load reads the configuration. path may be empty. flags may be nil; only
// flags registered by RegisterFlags are consulted.
func Load(path string, flags *pflag.FlagSet) (qsample.Config, error) {
	v := viper.New()
	if err := setDefaults(v, qsample.DefaultConfig()); err != nil {
		return qsample.Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return qsample.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return qsample.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg qsample.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return qsample.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return qsample.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every leaf of defaults under its dotted key, so that
// environment variables can override keys absent from the config file.
func setDefaults(v *viper.Viper, defaults qsample.Config) error {
	data, err := json.Marshal(defaults)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}
