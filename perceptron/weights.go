// Package perceptron implements the averaged linear scorer used for token
// boundaries, cues and spans.
package perceptron

import "encoding/json"

// Weights maps feature identifiers to raw and averaged weights.
//
// Averaging follows the lazy scheme: every update also accumulates
// delta*count into a per-feature cache, so that the average over all
// updates is raw - cache/count. The counter belongs to this store.
type Weights struct {
	raw       map[string]float64
	cache     map[string]float64
	count     int
	averaging bool
}

// NewWeights creates an empty store with averaging enabled.
func NewWeights() *Weights {
	return &Weights{
		raw:       make(map[string]float64),
		cache:     make(map[string]float64),
		averaging: true,
	}
}

// SetAveraging toggles accumulation of the averaging cache.
func (w *Weights) SetAveraging(on bool) {
	w.averaging = on
}

// Get returns the latest raw weight of f, or 0 if unseen.
func (w *Weights) Get(f string) float64 {
	return w.raw[f]
}

// GetAvg returns the averaged weight of f, or 0 if unseen.
func (w *Weights) GetAvg(f string) float64 {
	v, ok := w.raw[f]
	if !ok {
		return 0
	}
	if w.count == 0 {
		return v
	}
	return v - w.cache[f]/float64(w.count)
}

// Init registers f with weight 0 unless it is already known.
func (w *Weights) Init(f string) {
	if _, ok := w.raw[f]; !ok {
		w.raw[f] = 0
	}
}

// Update adds delta to the raw weight of f.
func (w *Weights) Update(f string, delta float64) {
	w.raw[f] += delta
	if w.averaging {
		w.cache[f] += delta * float64(w.count)
	}
	w.count++
}

// Reset clears all weights and the update counter.
func (w *Weights) Reset() {
	clear(w.raw)
	clear(w.cache)
	w.count = 0
}

// Len returns the number of known features.
func (w *Weights) Len() int {
	return len(w.raw)
}

// Count returns the number of updates applied.
func (w *Weights) Count() int {
	return w.count
}

// Features calls fn for every feature with its raw and averaged weight.
func (w *Weights) Features(fn func(f string, raw, avg float64)) {
	for f, v := range w.raw {
		fn(f, v, w.GetAvg(f))
	}
}

type weightsJSON struct {
	Raw       map[string]float64 `json:"raw"`
	Cache     map[string]float64 `json:"cache,omitempty"`
	Count     int                `json:"count"`
	Averaging bool               `json:"averaging"`
}

// MarshalJSON implements json.Marshaler.
func (w *Weights) MarshalJSON() ([]byte, error) {
	return json.Marshal(weightsJSON{
		Raw:       w.raw,
		Cache:     w.cache,
		Count:     w.count,
		Averaging: w.averaging,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *Weights) UnmarshalJSON(data []byte) error {
	var v weightsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Raw == nil {
		v.Raw = make(map[string]float64)
	}
	if v.Cache == nil {
		v.Cache = make(map[string]float64)
	}
	w.raw, w.cache, w.count, w.averaging = v.Raw, v.Cache, v.Count, v.Averaging
	return nil
}
