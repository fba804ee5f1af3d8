package crf

import (
	"errors"
	"log/slog"
	"math"
)

// TrainerConfig holds the elastic net OWL-QN settings.
type TrainerConfig struct {
	C1            float64 `mapstructure:"c1" json:"c1"` // L1
	C2            float64 `mapstructure:"c2" json:"c2"` // L2
	MaxIterations int     `mapstructure:"max_iterations" json:"max_iterations"`
	Epsilon       float64 `mapstructure:"epsilon" json:"epsilon"`
	Memory        int     `mapstructure:"memory" json:"memory"`
}

// DefaultTrainerConfig returns the default training settings.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		C1:            0.1,
		C2:            0.01,
		MaxIterations: 100,
		Epsilon:       1e-5,
		Memory:        10,
	}
}

type compiled struct {
	attrs  [][]int
	labels []int
}

// objective is the regularized negative log-likelihood of the training set.
type objective struct {
	model *Model
	seqs  []compiled
	c2    float64
}

// eval returns the smooth part of the objective at w (negative
// log-likelihood plus L2). If grad is not nil it receives the gradient.
func (o *objective) eval(w, grad []float64) float64 {
	L := o.model.NumLabels
	off := o.model.transOffset()
	if grad != nil {
		clear(grad)
	}

	var f float64
	for _, seq := range o.seqs {
		if len(seq.attrs) == 0 {
			continue
		}
		lat := o.model.lattice(seq.attrs, w)
		post := lat.forwardBackward(grad != nil)
		f += post.logZ - lat.score(seq.labels)
		if grad == nil {
			continue
		}
		for t, ids := range seq.attrs {
			gold := seq.labels[t]
			for _, a := range ids {
				grad[a*L+gold]--
				for y := range L {
					grad[a*L+y] += post.node[t][y]
				}
			}
			if t == 0 {
				continue
			}
			grad[off+seq.labels[t-1]*L+gold]--
			for i := range L {
				for j := range L {
					grad[off+i*L+j] += post.edge[t-1][i][j]
				}
			}
		}
	}

	if o.c2 > 0 {
		var sq float64
		for i, v := range w {
			sq += v * v
			if grad != nil {
				grad[i] += o.c2 * v
			}
		}
		f += 0.5 * o.c2 * sq
	}
	return f
}

func l1(w []float64, c1 float64) float64 {
	var s float64
	for _, v := range w {
		s += math.Abs(v)
	}
	return c1 * s
}

// pseudoGradient is the OWL-QN subgradient of f + c1*|w|.
func pseudoGradient(w, grad []float64, c1 float64) []float64 {
	pg := make([]float64, len(w))
	for i := range w {
		switch {
		case w[i] > 0:
			pg[i] = grad[i] + c1
		case w[i] < 0:
			pg[i] = grad[i] - c1
		case grad[i]+c1 < 0:
			pg[i] = grad[i] + c1
		case grad[i]-c1 > 0:
			pg[i] = grad[i] - c1
		}
	}
	return pg
}

// Train fits a model to seqs. labels fixes the first label IDs.
func Train(seqs []Sequence, config TrainerConfig, labels ...string) (*Model, error) {
	if len(seqs) == 0 {
		return nil, errors.New("crf: no training sequences")
	}
	model := NewModel(seqs, labels...)
	obj := &objective{model: model, c2: config.C2}
	for _, seq := range seqs {
		if len(seq.Labels) != len(seq.Attributes) {
			return nil, errors.New("crf: labels and attributes differ in length")
		}
		c := compiled{attrs: model.encode(seq.Attributes), labels: make([]int, len(seq.Labels))}
		for t, l := range seq.Labels {
			c.labels[t] = model.Labels.Get(l)
		}
		obj.seqs = append(obj.seqs, c)
	}

	n := model.NumWeights()
	w := model.Weights
	grad := make([]float64, n)
	f := obj.eval(w, grad) + l1(w, config.C1)
	pg := pseudoGradient(w, grad, config.C1)
	memory := newLBFGS(n, max(config.Memory, 1))

	for iter := range config.MaxIterations {
		dir := memory.direction(pg)
		for i := range dir {
			// keep the direction in the orthant of the pseudo-gradient
			if dir[i]*pg[i] > 0 {
				dir[i] = 0
			}
		}

		next, fNext, ok := lineSearch(w, dir, f, pg, func(x []float64) float64 {
			return obj.eval(x, nil) + l1(x, config.C1)
		}, config.C1)
		if !ok {
			slog.Debug("crf line search stopped", "iteration", iter+1)
			break
		}

		nextGrad := make([]float64, n)
		obj.eval(next, nextGrad)
		nextPG := pseudoGradient(next, nextGrad, config.C1)

		s := make([]float64, n)
		y := make([]float64, n)
		for i := range n {
			s[i] = next[i] - w[i]
			y[i] = nextPG[i] - pg[i]
		}
		memory.update(s, y)

		copy(w, next)
		f, pg = fNext, nextPG
		slog.Debug("crf iteration", "iteration", iter+1, "objective", f)

		var maxPG float64
		for _, g := range pg {
			maxPG = max(maxPG, math.Abs(g))
		}
		if maxPG < config.Epsilon {
			break
		}
	}
	return model, nil
}

// lbfgs keeps the last m curvature pairs for the two-loop recursion.
type lbfgs struct {
	n, m int
	s, y [][]float64
	rho  []float64
}

func newLBFGS(n, m int) *lbfgs {
	return &lbfgs{n: n, m: m}
}

func (l *lbfgs) update(s, y []float64) {
	sy := dot(s, y)
	if sy <= 0 {
		return
	}
	if len(l.s) == l.m {
		l.s, l.y, l.rho = l.s[1:], l.y[1:], l.rho[1:]
	}
	l.s = append(l.s, s)
	l.y = append(l.y, y)
	l.rho = append(l.rho, 1/sy)
}

// direction returns the quasi-Newton descent direction for gradient g.
func (l *lbfgs) direction(g []float64) []float64 {
	q := make([]float64, l.n)
	copy(q, g)
	k := len(l.s)
	alpha := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		alpha[i] = l.rho[i] * dot(l.s[i], q)
		axpy(-alpha[i], l.y[i], q)
	}
	if k > 0 {
		if yy := dot(l.y[k-1], l.y[k-1]); yy > 0 {
			gamma := dot(l.s[k-1], l.y[k-1]) / yy
			for i := range q {
				q[i] *= gamma
			}
		}
	}
	for i := range k {
		beta := l.rho[i] * dot(l.y[i], q)
		axpy(alpha[i]-beta, l.s[i], q)
	}
	for i := range q {
		q[i] = -q[i]
	}
	return q
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// axpy computes y += a*x.
func axpy(a float64, x, y []float64) {
	for i := range x {
		y[i] += a * x[i]
	}
}

// lineSearch backtracks from a unit step until the Armijo condition holds,
// projecting every trial point onto the orthant of w.
func lineSearch(w, dir []float64, f float64, pg []float64, fn func([]float64) float64, c1 float64) ([]float64, float64, bool) {
	slope := dot(dir, pg)
	if slope >= 0 {
		return nil, 0, false
	}
	const armijo = 1e-4
	x := make([]float64, len(w))
	for step := 1.0; step > 1e-10; step /= 2 {
		for i := range w {
			x[i] = w[i] + step*dir[i]
			if c1 > 0 && x[i]*w[i] < 0 {
				x[i] = 0
			}
		}
		if fx := fn(x); fx <= f+armijo*step*slope {
			return x, fx, true
		}
	}
	return nil, 0, false
}
