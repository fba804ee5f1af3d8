// Package qsample finds quotation content spans in tokenized text.
//
// A pipeline scores every token as a cue, span begin and span end with
// averaged perceptrons, then samples candidate spans from those scores and
// keeps the ones a span-level model prefers.
//
//	p, _ := qsample.New()
//	_ = p.Predict(docs)
//	for _, s := range docs[0].Predicted.Spans() {
//	    fmt.Println(s.Begin, s.End)
//	}
package qsample

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/crf"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/model"
	"github.com/happyhackingspace/qsample/sampler"
)

const snapshotVersion = 1

// Pipeline bundles the boundary classifiers with the selected span
// predictor.
type Pipeline struct {
	config    Config
	boundary  *model.Boundary
	spans     *model.SpanModel
	tagger    *crf.Tagger
	extractor *features.Cached
	trained   bool
}

type snapshot struct {
	Version  int              `json:"version"`
	Config   Config           `json:"config"`
	Boundary *model.Boundary  `json:"boundary"`
	Spans    *model.SpanModel `json:"spans"`
	Tagger   *crf.Tagger      `json:"tagger,omitempty"`
}

// NewPipeline creates an untrained pipeline.
func NewPipeline(config Config) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("qsample: %w", err)
	}
	return &Pipeline{
		config:    config,
		boundary:  model.NewBoundary(config.Boundary),
		spans:     model.NewSpanModel(),
		extractor: features.NewCached(features.Lexical{}, config.Cache),
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// SpanModel returns the span-level model.
func (p *Pipeline) SpanModel() *model.SpanModel {
	return p.spans
}

// New loads the pipeline from "model.json", searching the current directory
// and parent directories up to the module root (where go.mod lives).
func New() (*Pipeline, error) {
	path, err := findModel("model.json")
	if err != nil {
		return nil, fmt.Errorf("qsample: %w", err)
	}
	return Load(path)
}

func findModel(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		// Stop at module root
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%s not found", name)
}

// Load reads a pipeline saved with Save.
func Load(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("qsample: %w", err)
	}
	defer f.Close()
	p, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("qsample: load %s: %w", path, err)
	}
	return p, nil
}

// Read decodes a pipeline snapshot.
func Read(r io.Reader) (*Pipeline, error) {
	var snap snapshot
	if err := decoder.NewStreamDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if err := snap.Config.Validate(); err != nil {
		return nil, err
	}
	if snap.Boundary == nil || snap.Boundary.Begin == nil || snap.Boundary.End == nil || snap.Boundary.Cue == nil {
		return nil, errors.New("snapshot has no boundary classifiers")
	}
	if snap.Spans == nil || snap.Spans.Begin == nil || snap.Spans.End == nil || snap.Spans.Higher == nil {
		return nil, errors.New("snapshot has no span model")
	}
	if snap.Config.Method == MethodCRF && (snap.Tagger == nil || snap.Tagger.Model == nil) {
		return nil, errors.New("snapshot has no crf tagger")
	}
	snap.Boundary.Configure(snap.Config.Boundary)
	return &Pipeline{
		config:    snap.Config,
		boundary:  snap.Boundary,
		spans:     snap.Spans,
		tagger:    snap.Tagger,
		extractor: features.NewCached(features.Lexical{}, snap.Config.Cache),
		trained:   true,
	}, nil
}

// Save writes the pipeline to a model file.
func (p *Pipeline) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("qsample: %w", err)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("qsample: save %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("qsample: %w", err)
	}
	return nil
}

// Write encodes the pipeline snapshot.
func (p *Pipeline) Write(w io.Writer) error {
	if !p.trained {
		return errors.New("pipeline not trained")
	}
	return encoder.NewStreamEncoder(w).Encode(snapshot{
		Version:  snapshotVersion,
		Config:   p.config,
		Boundary: p.boundary,
		Spans:    p.spans,
		Tagger:   p.tagger,
	})
}

// Train fits the boundary classifiers on train and then the configured
// span predictor. heldOut documents get boundary scores too and are
// re-predicted periodically by the sampler. onEpoch is called after every
// sampler epoch.
func (p *Pipeline) Train(train, heldOut []*corpus.Document, onEpoch func(epoch int)) error {
	if len(train) == 0 {
		return errors.New("qsample: no training documents")
	}
	p.boundary.Fit(train, heldOut)
	p.extractor.Purge()
	// Span features depend on the cues predicted above.
	for _, doc := range train {
		for _, g := range doc.Gold {
			g.Features = nil
		}
	}

	switch p.config.Method {
	case MethodSample:
		s, err := sampler.New(p.spans, p.extractor, p.config.Sampler)
		if err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
		if err := s.Train(train, heldOut, onEpoch); err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
	case MethodCRF:
		tagger, err := crf.TrainTagger(train, p.config.CRF)
		if err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
		p.tagger = tagger
	}
	p.trained = true
	slog.Debug("pipeline trained", "method", p.config.Method, "documents", len(train), "held_out", len(heldOut))
	return nil
}

// Predict replaces the predicted cues and spans of docs. Documents must
// carry token features.
func (p *Pipeline) Predict(docs []*corpus.Document) error {
	if !p.trained {
		return errors.New("qsample: pipeline not trained")
	}
	for _, doc := range docs {
		doc.ResetScores()
	}
	p.boundary.Apply(docs)
	p.extractor.Purge()

	switch p.config.Method {
	case MethodSample:
		s, err := sampler.New(p.spans, p.extractor, p.config.Sampler)
		if err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
		if err := s.Predict(docs); err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
	case MethodGreedy:
		for _, doc := range docs {
			doc.ResetPredicted()
		}
		if err := sampler.NewHeuristic(p.config.Sampler).SampleGreedyAll(docs); err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
	case MethodCRF:
		if err := p.tagger.Predict(docs); err != nil {
			return fmt.Errorf("qsample: %w", err)
		}
	}
	return nil
}

// DumpWeights writes the averaged span model weights, one per line.
func (p *Pipeline) DumpWeights(w io.Writer) error {
	return p.spans.Dump(w)
}
