package crf

import "math"

// lattice holds the log-potentials of one sequence: state[t][y] and
// trans[from][to].
type lattice struct {
	state [][]float64
	trans [][]float64
}

func (l lattice) labels() int {
	return len(l.trans)
}

// viterbi returns the best path and its score.
func (l lattice) viterbi() ([]int, float64) {
	T, L := len(l.state), l.labels()
	if T == 0 {
		return nil, math.Inf(-1)
	}

	best := make([]float64, L)
	copy(best, l.state[0])
	back := make([][]int, T)

	next := make([]float64, L)
	for t := 1; t < T; t++ {
		back[t] = make([]int, L)
		for y := range L {
			arg, score := 0, math.Inf(-1)
			for prev := range L {
				if s := best[prev] + l.trans[prev][y]; s > score {
					arg, score = prev, s
				}
			}
			next[y] = score + l.state[t][y]
			back[t][y] = arg
		}
		best, next = next, best
	}

	last, score := 0, math.Inf(-1)
	for y, s := range best {
		if s > score {
			last, score = y, s
		}
	}
	path := make([]int, T)
	path[T-1] = last
	for t := T - 1; t > 0; t-- {
		path[t-1] = back[t][path[t]]
	}
	return path, score
}

// posterior is the result of forward-backward: the log partition function,
// node marginals node[t][y] and, if requested, edge marginals
// edge[t][i][j] = P(y_t=i, y_t+1=j).
type posterior struct {
	logZ float64
	node [][]float64
	edge [][][]float64
}

func exps(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = math.Exp(v)
		}
	}
	return out
}

// forwardBackward runs the scaled forward-backward recursions.
func (l lattice) forwardBackward(edges bool) posterior {
	T, L := len(l.state), l.labels()
	if T == 0 {
		return posterior{}
	}
	state, trans := exps(l.state), exps(l.trans)

	alpha := make([][]float64, T)
	scale := make([]float64, T)
	for t := range T {
		alpha[t] = make([]float64, L)
		var sum float64
		for y := range L {
			v := state[t][y]
			if t > 0 {
				var in float64
				for prev := range L {
					in += alpha[t-1][prev] * trans[prev][y]
				}
				v *= in
			}
			alpha[t][y] = v
			sum += v
		}
		scale[t] = 1
		if sum > 0 {
			scale[t] = 1 / sum
		}
		for y := range L {
			alpha[t][y] *= scale[t]
		}
	}

	beta := make([][]float64, T)
	beta[T-1] = make([]float64, L)
	for y := range L {
		beta[T-1][y] = scale[T-1]
	}
	for t := T - 2; t >= 0; t-- {
		beta[t] = make([]float64, L)
		for y := range L {
			var out float64
			for nx := range L {
				out += trans[y][nx] * state[t+1][nx] * beta[t+1][nx]
			}
			beta[t][y] = out * scale[t]
		}
	}

	p := posterior{node: make([][]float64, T)}
	for t := range T {
		p.logZ -= math.Log(scale[t])
		p.node[t] = make([]float64, L)
		for y := range L {
			p.node[t][y] = alpha[t][y] * beta[t][y] / scale[t]
		}
	}
	if !edges || T < 2 {
		return p
	}
	p.edge = make([][][]float64, T-1)
	for t := range T - 1 {
		p.edge[t] = make([][]float64, L)
		for i := range L {
			p.edge[t][i] = make([]float64, L)
			for j := range L {
				p.edge[t][i][j] = alpha[t][i] * trans[i][j] * state[t+1][j] * beta[t+1][j]
			}
		}
	}
	return p
}

// score returns the unnormalized log score of path.
func (l lattice) score(path []int) float64 {
	var s float64
	for t, y := range path {
		s += l.state[t][y]
		if t > 0 {
			s += l.trans[path[t-1]][y]
		}
	}
	return s
}
