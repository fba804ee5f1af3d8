package sampler

import (
	"fmt"
	"log/slog"

	"github.com/happyhackingspace/qsample/corpus"
)

// Train seeds train with the greedy heuristic and runs OuterIter epochs of
// InnerIter training passes over it. Every PredictEvery epochs (skipping the
// first) heldOut is re-predicted for monitoring. onEpoch, if not nil, is
// called after each epoch.
func (s *Sampler) Train(train, heldOut []*corpus.Document, onEpoch func(epoch int)) error {
	for _, doc := range train {
		doc.ResetPredicted()
	}
	if err := s.heuristic.SampleGreedyAll(train); err != nil {
		return fmt.Errorf("seed training spans: %w", err)
	}
	for _, doc := range train {
		for _, g := range doc.Gold {
			if g.Features == nil {
				g.Features = s.extractor.SpanFeatures(doc, g)
			}
		}
	}

	for epoch := range s.config.OuterIter {
		if err := s.SampleCorpus(train, true, s.config.InnerIter); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		slog.Debug("sampler epoch", "epoch", epoch, "documents", len(train), "predicted", countPredicted(train))

		if len(heldOut) > 0 && epoch != 0 && s.config.PredictEvery > 0 && epoch%s.config.PredictEvery == 0 {
			if err := s.Predict(heldOut); err != nil {
				return fmt.Errorf("epoch %d held-out prediction: %w", epoch, err)
			}
			slog.Debug("held-out prediction", "epoch", epoch, "predicted", countPredicted(heldOut))
		}
		if onEpoch != nil {
			onEpoch(epoch)
		}
	}
	return nil
}

// Predict clears the predicted spans of docs, seeds them with the greedy
// heuristic and runs PredictionIter sampling passes with averaged weights.
func (s *Sampler) Predict(docs []*corpus.Document) error {
	for _, doc := range docs {
		doc.ResetPredicted()
	}
	if err := s.heuristic.SampleGreedyAll(docs); err != nil {
		return fmt.Errorf("seed spans: %w", err)
	}
	return s.SampleCorpus(docs, false, s.config.PredictionIter)
}

func countPredicted(docs []*corpus.Document) int {
	n := 0
	for _, doc := range docs {
		n += doc.Predicted.Len()
	}
	return n
}
