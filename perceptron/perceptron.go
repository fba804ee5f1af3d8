package perceptron

import (
	"fmt"
	"math"
)

// Bias is the feature present in every score.
const Bias = "BIAS"

// Rule selects the update rule applied by Train.
type Rule int

const (
	RulePerceptron Rule = iota
	RuleLogistic
)

func (r Rule) String() string {
	switch r {
	case RulePerceptron:
		return "perceptron"
	case RuleLogistic:
		return "logistic"
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// ParseRule parses the name returned by Rule.String.
func ParseRule(s string) (Rule, error) {
	switch s {
	case "perceptron", "":
		return RulePerceptron, nil
	case "logistic", "lr":
		return RuleLogistic, nil
	}
	return 0, fmt.Errorf("unknown update rule %q", s)
}

// Perceptron is a linear scorer over sparse binary features.
type Perceptron struct {
	Weights        *Weights `json:"weights"`
	FixedBias      float64  `json:"fixed_bias"`
	MarginPositive float64  `json:"margin_positive"`
	MarginNegative float64  `json:"margin_negative"`
	Rule           Rule     `json:"rule"`
	NumUpdates     int      `json:"num_updates"`
}

// New creates a perceptron with both margins set to 1.
func New() *Perceptron {
	w := NewWeights()
	w.Init(Bias)
	return &Perceptron{
		Weights:        w,
		MarginPositive: 1,
		MarginNegative: 1,
	}
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Score returns bias plus the sum of the weights of features.
// FixedBias only applies to averaged scores.
func (p *Perceptron) Score(features []string, avg bool) float64 {
	if avg {
		s := p.Weights.GetAvg(Bias) + p.FixedBias
		for _, f := range features {
			s += p.Weights.GetAvg(f)
		}
		return s
	}
	s := p.Weights.Get(Bias)
	for _, f := range features {
		s += p.Weights.Get(f)
	}
	return s
}

// Train applies the configured update rule for one example.
func (p *Perceptron) Train(features []string, positive bool, rate float64) {
	score := p.Score(features, false)
	switch p.Rule {
	case RuleLogistic:
		y := 0.0
		if positive {
			y = 1
		}
		p.Update(features, rate*(y-Sigmoid(score)))
	default:
		if positive && score-p.MarginPositive <= 0 {
			p.Update(features, rate)
		} else if !positive && score+p.MarginNegative > 0 {
			p.Update(features, -rate)
		}
	}
}

// Update adds rate to the bias and to every feature, without margin checks.
func (p *Perceptron) Update(features []string, rate float64) {
	p.Weights.Update(Bias, rate)
	for _, f := range features {
		p.Weights.Update(f, rate)
	}
	p.NumUpdates++
}

// Reset clears the weights and update count.
func (p *Perceptron) Reset() {
	p.Weights.Reset()
	p.Weights.Init(Bias)
	p.NumUpdates = 0
}
