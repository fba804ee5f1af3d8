// Package crf implements a linear-chain conditional random field over binary
// token attributes. It backs the BIO span tagger baseline.
package crf

import (
	"encoding/json"
	"fmt"
	"io"
)

// Alphabet maps between strings and dense integer IDs.
type Alphabet struct {
	ToID  map[string]int `json:"to_id"`
	ToStr []string       `json:"to_str"`
}

// NewAlphabet creates an empty alphabet.
func NewAlphabet() *Alphabet {
	return &Alphabet{ToID: make(map[string]int)}
}

// Add returns the ID of s, adding it if needed.
func (a *Alphabet) Add(s string) int {
	if id, ok := a.ToID[s]; ok {
		return id
	}
	id := len(a.ToStr)
	a.ToID[s] = id
	a.ToStr = append(a.ToStr, s)
	return id
}

// Get returns the ID for s, or -1.
func (a *Alphabet) Get(s string) int {
	if id, ok := a.ToID[s]; ok {
		return id
	}
	return -1
}

// Size returns the number of entries.
func (a *Alphabet) Size() int {
	return len(a.ToStr)
}

// Sequence is one labeled token sequence. Attributes[t] lists the binary
// attributes active at position t.
type Sequence struct {
	Attributes [][]string `json:"attributes"`
	Labels     []string   `json:"labels,omitempty"`
}

// Model holds the CRF parameters. Weights are laid out as state weights
// (attrID*NumLabels + label) followed by transition weights
// (from*NumLabels + to).
type Model struct {
	Labels     *Alphabet `json:"labels"`
	Attributes *Alphabet `json:"attributes"`
	Weights    []float64 `json:"weights"`
	NumLabels  int       `json:"num_labels"`
}

// NewModel creates a model whose alphabets are built from seqs. Labels
// listed in labels come first, in order, even if no sequence uses them.
func NewModel(seqs []Sequence, labels ...string) *Model {
	m := &Model{Labels: NewAlphabet(), Attributes: NewAlphabet()}
	for _, l := range labels {
		m.Labels.Add(l)
	}
	for _, seq := range seqs {
		for _, l := range seq.Labels {
			m.Labels.Add(l)
		}
		for _, attrs := range seq.Attributes {
			for _, a := range attrs {
				m.Attributes.Add(a)
			}
		}
	}
	m.NumLabels = m.Labels.Size()
	m.Weights = make([]float64, m.NumWeights())
	return m
}

func (m *Model) transOffset() int {
	return m.Attributes.Size() * m.NumLabels
}

// NumWeights returns the length of the weight vector.
func (m *Model) NumWeights() int {
	return m.transOffset() + m.NumLabels*m.NumLabels
}

// encode maps attributes to IDs, dropping unknown ones.
func (m *Model) encode(attrs [][]string) [][]int {
	out := make([][]int, len(attrs))
	for t, as := range attrs {
		ids := make([]int, 0, len(as))
		for _, a := range as {
			if id := m.Attributes.Get(a); id >= 0 {
				ids = append(ids, id)
			}
		}
		out[t] = ids
	}
	return out
}

// lattice scores a sequence of attribute IDs under weights w.
func (m *Model) lattice(ids [][]int, w []float64) lattice {
	L := m.NumLabels
	state := make([][]float64, len(ids))
	for t, as := range ids {
		state[t] = make([]float64, L)
		for _, a := range as {
			base := a * L
			for y := range L {
				state[t][y] += w[base+y]
			}
		}
	}
	off := m.transOffset()
	trans := make([][]float64, L)
	for i := range L {
		trans[i] = w[off+i*L : off+(i+1)*L]
	}
	return lattice{state: state, trans: trans}
}

// Predict returns the most likely label sequence.
func (m *Model) Predict(attrs [][]string) []string {
	if len(attrs) == 0 || m.NumLabels == 0 {
		return nil
	}
	path, _ := m.lattice(m.encode(attrs), m.Weights).viterbi()
	labels := make([]string, len(path))
	for t, y := range path {
		labels[t] = m.Labels.ToStr[y]
	}
	return labels
}

// Marginals returns P(label | sequence) for every position.
func (m *Model) Marginals(attrs [][]string) []map[string]float64 {
	if len(attrs) == 0 || m.NumLabels == 0 {
		return nil
	}
	post := m.lattice(m.encode(attrs), m.Weights).forwardBackward(false)
	out := make([]map[string]float64, len(attrs))
	for t := range attrs {
		out[t] = make(map[string]float64, m.NumLabels)
		for y, l := range m.Labels.ToStr {
			out[t][l] = post.node[t][y]
		}
	}
	return out
}

// Save writes the model as JSON.
func (m *Model) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(m)
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode crf model: %w", err)
	}
	if m.Labels == nil || m.Attributes == nil || len(m.Weights) != m.NumWeights() {
		return nil, fmt.Errorf("crf model: inconsistent weights (%d)", len(m.Weights))
	}
	return &m, nil
}
