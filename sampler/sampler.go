// Package sampler refines predicted spans by sampling candidate spans from
// boundary scores, scoring them with the span model and training it online
// against gold spans.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/model"
)

// ErrMultipleGoldMatches is returned when a candidate matches more than one
// gold span. Training cannot continue past it.
var ErrMultipleGoldMatches = errors.New("candidate matches more than one gold span")

// Sampler proposes, scores and accepts spans for documents whose tokens
// carry begin, end and cue scores.
type Sampler struct {
	config    Config
	model     *model.SpanModel
	extractor features.SpanExtractor
	heuristic *Heuristic

	begin     *Categorical
	end       *Categorical
	direction *rand.Rand
	shuffle   *rand.Rand
}

// New creates a sampler. The config is validated and copied.
func New(m *model.SpanModel, extractor features.SpanExtractor, config Config) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sampler config: %w", err)
	}
	if config.Criterion == "" {
		config.Criterion = CriterionSum
	}
	return &Sampler{
		config:    config,
		model:     m,
		extractor: extractor,
		heuristic: NewHeuristic(config),
		begin:     NewCategorical(config.BeginSeed),
		end:       NewCategorical(config.EndSeed),
		direction: rand.New(rand.NewPCG(config.DirectionSeed, config.DirectionSeed)),
		shuffle:   rand.New(rand.NewPCG(config.ShuffleSeed, config.ShuffleSeed)),
	}, nil
}

// Config returns the sampler's configuration.
func (s *Sampler) Config() Config {
	return s.config
}

// Heuristic returns the greedy heuristic used to seed predictions.
func (s *Sampler) Heuristic() *Heuristic {
	return s.heuristic
}

// SampleBegin draws a begin position from the whole document, or -1 if empty.
func (s *Sampler) SampleBegin(doc *corpus.Document) int {
	scores := make([]float64, doc.Len())
	for i, t := range doc.Tokens {
		scores[i] = t.BeginScore
	}
	return s.drawBegin(doc, scores, func(i int) int { return i })
}

// SampleEnd draws an end position from the whole document, or -1 if empty.
func (s *Sampler) SampleEnd(doc *corpus.Document) int {
	scores := make([]float64, doc.Len())
	for i, t := range doc.Tokens {
		scores[i] = t.EndScore
	}
	return s.drawEnd(doc, scores, func(i int) int { return i })
}

// SampleEndFrom draws an end in [begin, begin+MaxLengthSampling], or -1.
func (s *Sampler) SampleEndFrom(doc *corpus.Document, begin int) int {
	if begin < 0 || begin >= doc.Len() {
		return -1
	}
	last := min(doc.Len()-1, begin+s.config.MaxLengthSampling)
	scores := make([]float64, 0, last-begin+1)
	for i := begin; i <= last; i++ {
		scores = append(scores, doc.Tokens[i].EndScore)
	}
	return s.drawEnd(doc, scores, func(i int) int { return begin + i })
}

// SampleBeginBefore draws a begin in [end-MaxLengthSampling, end], or -1.
// Candidates are listed from end leftwards.
func (s *Sampler) SampleBeginBefore(doc *corpus.Document, end int) int {
	if end < 0 || end >= doc.Len() {
		return -1
	}
	first := max(0, end-s.config.MaxLengthSampling)
	scores := make([]float64, 0, end-first+1)
	for i := end; i >= first; i-- {
		scores = append(scores, doc.Tokens[i].BeginScore)
	}
	return s.drawBegin(doc, scores, func(i int) int { return end - i })
}

func (s *Sampler) drawBegin(doc *corpus.Document, scores []float64, position func(int) int) int {
	idx := s.begin.SampleOne(scores, s.config.BeginTemperature, 0)
	if idx == -1 {
		return -1
	}
	drawOps.WithLabelValues("begin").Inc()
	p := position(idx)
	doc.Tokens[p].SampledBegin++
	return p
}

func (s *Sampler) drawEnd(doc *corpus.Document, scores []float64, position func(int) int) int {
	idx := s.end.SampleOne(scores, s.config.EndTemperature, 0)
	if idx == -1 {
		return -1
	}
	drawOps.WithLabelValues("end").Inc()
	p := position(idx)
	doc.Tokens[p].SampledEnd++
	return p
}

// RandomCandidates draws one span by choosing a direction, then a first and
// a second boundary. It retries up to MaxNumTrials times and returns no
// candidate when every trial leaves a boundary unresolved.
func (s *Sampler) RandomCandidates(doc *corpus.Document) ([]*corpus.Span, error) {
	begin, end := -1, -1
	for trial := 0; trial < s.config.MaxNumTrials && (begin == -1 || end == -1); trial++ {
		if s.direction.IntN(2) == 0 {
			begin = s.SampleBegin(doc)
			end = s.SampleEndFrom(doc, begin)
		} else {
			end = s.SampleEnd(doc)
			begin = s.SampleBeginBefore(doc, end)
		}
	}
	if begin == -1 || end == -1 {
		return nil, nil
	}
	span, err := corpus.NewSpan(doc, begin, end, corpus.ContentLabel)
	if err != nil {
		return nil, err
	}
	return []*corpus.Span{span}, nil
}

// CueCandidates draws at most one span per predicted cue, anchored on the
// nearest boundary found from the cue in a randomly chosen direction.
func (s *Sampler) CueCandidates(doc *corpus.Document) ([]*corpus.Span, error) {
	var out []*corpus.Span
	for cue, t := range doc.Tokens {
		if !t.PredictedCue {
			continue
		}
		begin, end := -1, -1
		if s.direction.IntN(2) == 0 {
			begin = FindNextBeginFromCue(doc, cue, s.config.MaxCueDistanceSampling)
			if begin != -1 {
				end = s.SampleEndFrom(doc, begin)
			}
		} else {
			end = FindPrevEndFromCue(doc, cue, s.config.MaxCueDistanceSampling)
			if end != -1 {
				begin = s.SampleBeginBefore(doc, end)
			}
		}
		if begin == -1 || end == -1 {
			continue
		}
		span, err := corpus.NewSpan(doc, begin, end, corpus.ContentLabel)
		if err != nil {
			return nil, err
		}
		out = append(out, span)
	}
	return out, nil
}

func (s *Sampler) candidates(doc *corpus.Document) ([]*corpus.Span, error) {
	if s.config.LinearSampling {
		return s.CueCandidates(doc)
	}
	return s.RandomCandidates(doc)
}

// Score attaches span features if missing, scores sp and stores the score.
func (s *Sampler) Score(doc *corpus.Document, sp *corpus.Span, avg bool) float64 {
	if sp.Features == nil {
		sp.Features = s.extractor.SpanFeatures(doc, sp)
	}
	sp.Score = s.model.Score(doc, sp, avg)
	return sp.Score
}

// aggregate combines the scores of the predicted spans overlapping a candidate.
func (s *Sampler) aggregate(scores []float64) float64 {
	agg := 0.0
	for _, v := range scores {
		switch s.config.Criterion {
		case CriterionMax:
			if v > agg {
				agg = v
			}
		default:
			agg += v
		}
	}
	if s.config.Criterion == CriterionMean && len(scores) > 0 {
		agg /= float64(len(scores))
	}
	return agg
}

// consider tries to insert a scored candidate. A candidate with a positive
// score replaces every overlapping predicted span if it beats their
// aggregate score.
func (s *Sampler) consider(doc *corpus.Document, cand *corpus.Span, avg bool) (bool, error) {
	if cand.Score <= 0 {
		return false, nil
	}
	existing := doc.Predicted.Overlapping(cand)
	scores := make([]float64, len(existing))
	for i, e := range existing {
		scores[i] = s.Score(doc, e, avg)
	}
	if cand.Score <= s.aggregate(scores) {
		return false, nil
	}
	doc.Predicted.Add(cand)
	for _, e := range existing {
		if !doc.Predicted.Remove(e) {
			return false, fmt.Errorf("remove overlapping span %v from document %q", e, doc.ID)
		}
	}
	candidateOps.WithLabelValues(outcomeReplaced).Add(float64(len(existing)))
	return true, nil
}

// updateAgainstGold trains the span model on a scored span.
func (s *Sampler) updateAgainstGold(doc *corpus.Document, sp *corpus.Span) error {
	matches := doc.MatchingGold(sp)
	if len(matches) > 1 {
		return fmt.Errorf("%w: %v in document %q matches %d gold spans",
			ErrMultipleGoldMatches, sp, doc.ID, len(matches))
	}
	correct := len(matches) == 1
	rate := s.config.LearningRate

	switch {
	case !correct && sp.Score > -s.config.MarginNegative:
		s.model.Train(doc, sp, false, rate)
		updateOps.WithLabelValues("negative").Inc()
		if s.config.UpdateForGoldSpan {
			for _, g := range doc.OverlappingGold(sp) {
				if g.Features == nil {
					g.Features = s.extractor.SpanFeatures(doc, g)
				}
				s.model.Train(doc, g, true, rate)
				updateOps.WithLabelValues("positive").Inc()
			}
		}
	case correct && sp.Score <= s.config.MarginPositive:
		s.model.Train(doc, sp, true, rate)
		updateOps.WithLabelValues("positive").Inc()
	}
	return nil
}

// SampleDocument runs numIter sampling iterations over doc. Averaged weights
// are used unless training.
func (s *Sampler) SampleDocument(doc *corpus.Document, training bool, numIter int) error {
	avg := !training
	proposed := corpus.NewSpanSet()

	for range numIter {
		cands, err := s.candidates(doc)
		if err != nil {
			return err
		}
		for _, cand := range cands {
			if doc.Predicted.Contains(cand) || !proposed.Add(cand) {
				candidateOps.WithLabelValues(outcomeDuplicate).Inc()
				continue
			}
			candidateOps.WithLabelValues(outcomeProposed).Inc()

			s.Score(doc, cand, avg)
			accepted, err := s.consider(doc, cand, avg)
			if err != nil {
				return err
			}
			if accepted {
				candidateOps.WithLabelValues(outcomeAccepted).Inc()
			} else {
				candidateOps.WithLabelValues(outcomeRejected).Inc()
			}

			if training {
				if err := s.updateAgainstGold(doc, cand); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RemoveBadSpans rescores every predicted span and drops those scoring at
// most 0. When training, every span, kept or dropped, is also used for an
// update.
func (s *Sampler) RemoveBadSpans(doc *corpus.Document, training bool) error {
	avg := !training
	for _, sp := range doc.Predicted.Spans() {
		if s.Score(doc, sp, avg) <= 0 {
			doc.Predicted.Remove(sp)
			candidateOps.WithLabelValues(outcomeRemoved).Inc()
		}
		if training {
			if err := s.updateAgainstGold(doc, sp); err != nil {
				return err
			}
		}
	}
	return nil
}

// SampleCorpus shuffles docs, then runs the cleanup pass and numIter
// sampling iterations on each document in turn.
func (s *Sampler) SampleCorpus(docs []*corpus.Document, training bool, numIter int) error {
	shuffled := make([]*corpus.Document, len(docs))
	copy(shuffled, docs)
	s.shuffle.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	for _, doc := range shuffled {
		if err := s.RemoveBadSpans(doc, training); err != nil {
			return err
		}
		if err := s.SampleDocument(doc, training, numIter); err != nil {
			return err
		}
	}
	return nil
}
