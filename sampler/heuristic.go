package sampler

import (
	"math/rand/v2"

	"github.com/happyhackingspace/qsample/corpus"
)

// FindNextBeginFromCue returns the first position after cue, at most
// maxDist away, with a positive begin score, or -1.
func FindNextBeginFromCue(doc *corpus.Document, cue, maxDist int) int {
	last := min(cue+maxDist, doc.Len()-1)
	for i := cue + 1; i <= last; i++ {
		if doc.Tokens[i].BeginScore > 0 {
			return i
		}
	}
	return -1
}

// FindPrevEndFromCue returns the first position before cue, at most
// maxDist away, with a positive end score, or -1.
func FindPrevEndFromCue(doc *corpus.Document, cue, maxDist int) int {
	first := max(cue-maxDist, 0)
	for i := cue - 1; i >= first; i-- {
		if doc.Tokens[i].EndScore > 0 {
			return i
		}
	}
	return -1
}

// FindNextEndFromBegin returns the first position after begin, at most
// maxLength away, with a positive end score, or -1.
func FindNextEndFromBegin(doc *corpus.Document, begin, maxLength int) int {
	last := min(begin+maxLength, doc.Len()-1)
	for i := begin + 1; i <= last; i++ {
		if doc.Tokens[i].EndScore > 0 {
			return i
		}
	}
	return -1
}

// FindPrevBeginFromEnd returns the first position before end, at most
// maxLength away, with a positive begin score, or -1.
func FindPrevBeginFromEnd(doc *corpus.Document, end, maxLength int) int {
	first := max(end-maxLength, 0)
	for i := end - 1; i >= first; i-- {
		if doc.Tokens[i].BeginScore > 0 {
			return i
		}
	}
	return -1
}

// Heuristic seeds predicted spans from the nearest boundaries around
// predicted cues.
type Heuristic struct {
	MaxCueDistance int
	MaxSpanLength  int
	ShuffleTokens  bool

	rng *rand.Rand
}

// NewHeuristic creates a heuristic from the sampler config.
func NewHeuristic(config Config) *Heuristic {
	return &Heuristic{
		MaxCueDistance: config.MaxCueDistanceHeuristic,
		MaxSpanLength:  config.MaxLengthHeuristic,
		ShuffleTokens:  config.ShuffleTokens,
		rng:            rand.New(rand.NewPCG(config.HeuristicSeed, config.HeuristicSeed)),
	}
}

// SampleGreedy adds spans to doc.Predicted. For each predicted cue it looks
// forward for a begin and then an end, and backward for an end and then a
// begin. A cue is abandoned as soon as a found boundary lies inside an
// existing predicted span. Existing spans are never removed.
func (h *Heuristic) SampleGreedy(doc *corpus.Document) error {
	order := make([]int, doc.Len())
	for i := range order {
		order[i] = i
	}
	if h.ShuffleTokens && h.rng != nil {
		h.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	for _, cue := range order {
		if !doc.Tokens[cue].PredictedCue {
			continue
		}
		if err := h.fromCue(doc, cue); err != nil {
			return err
		}
	}
	return nil
}

func (h *Heuristic) fromCue(doc *corpus.Document, cue int) error {
	if begin := FindNextBeginFromCue(doc, cue, h.MaxCueDistance); begin != -1 {
		if doc.InPredicted(begin) {
			return nil
		}
		if end := FindNextEndFromBegin(doc, begin, h.MaxSpanLength); end != -1 {
			if doc.InPredicted(end) {
				return nil
			}
			if err := h.add(doc, begin, end); err != nil {
				return err
			}
		}
	}

	if end := FindPrevEndFromCue(doc, cue, h.MaxCueDistance); end != -1 {
		if doc.InPredicted(end) {
			return nil
		}
		if begin := FindPrevBeginFromEnd(doc, end, h.MaxSpanLength); begin != -1 {
			if doc.InPredicted(begin) {
				return nil
			}
			if err := h.add(doc, begin, end); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Heuristic) add(doc *corpus.Document, begin, end int) error {
	s, err := corpus.NewSpan(doc, begin, end, corpus.ContentLabel)
	if err != nil {
		return err
	}
	doc.Predicted.Add(s)
	return nil
}

// SampleGreedyAll runs SampleGreedy over every document.
func (h *Heuristic) SampleGreedyAll(docs []*corpus.Document) error {
	for _, doc := range docs {
		if err := h.SampleGreedy(doc); err != nil {
			return err
		}
	}
	return nil
}
