package sampler

import (
	"math/rand/v2"

	"github.com/happyhackingspace/qsample/perceptron"
)

// Categorical draws indexes proportionally to temperature-scaled sigmoid
// scores.
type Categorical struct {
	rng *rand.Rand
}

// NewCategorical creates a sampler with its own seeded generator.
func NewCategorical(seed uint64) *Categorical {
	return &Categorical{rng: rand.New(rand.NewPCG(seed, seed))}
}

// SampleOne returns an index into scores, or -1 when scores is empty.
// Exactly one random number is consumed per non-empty call.
func (c *Categorical) SampleOne(scores []float64, temperature, bias float64) int {
	if len(scores) == 0 {
		return -1
	}
	values := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		values[i] = perceptron.Sigmoid((s + bias) / temperature)
		sum += values[i]
	}

	r := c.rng.Float64()
	var cum float64
	for i, v := range values {
		cum += v / sum
		if cum > r {
			return i
		}
	}
	// rounding left the cumulative sum at or below r
	return len(values) - 1
}
