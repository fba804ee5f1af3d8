package model

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/perceptron"
)

// BoundaryConfig holds the hyperparameters of the token classifiers.
type BoundaryConfig struct {
	BeginMargin    float64 `mapstructure:"begin_margin" json:"begin_margin"`
	EndMargin      float64 `mapstructure:"end_margin" json:"end_margin"`
	CueMargin      float64 `mapstructure:"cue_margin" json:"cue_margin"`
	Rate           float64 `mapstructure:"rate" json:"rate"`
	CueEpochs      int     `mapstructure:"cue_epochs" json:"cue_epochs"`
	BoundaryEpochs int     `mapstructure:"boundary_epochs" json:"boundary_epochs"`
	Jackknifing    bool    `mapstructure:"jackknifing" json:"jackknifing"`
	JackknifeFolds int     `mapstructure:"jackknife_folds" json:"jackknife_folds"`
	TokenSeed      uint64  `mapstructure:"token_seed" json:"token_seed"`
	DocumentSeed   uint64  `mapstructure:"document_seed" json:"document_seed"`
}

// DefaultBoundaryConfig returns the default token classifier settings.
func DefaultBoundaryConfig() BoundaryConfig {
	return BoundaryConfig{
		BeginMargin:    25,
		EndMargin:      25,
		CueMargin:      25,
		Rate:           0.1,
		CueEpochs:      10,
		BoundaryEpochs: 10,
		JackknifeFolds: 10,
		TokenSeed:      123121,
		DocumentSeed:   123,
	}
}

// Validate checks the configuration for unusable values.
func (c BoundaryConfig) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("boundary rate must be positive, got %g", c.Rate)
	}
	if c.CueEpochs < 0 || c.BoundaryEpochs < 0 {
		return fmt.Errorf("boundary epochs must not be negative")
	}
	if c.Jackknifing && c.JackknifeFolds < 2 {
		return fmt.Errorf("jackknifing needs at least 2 folds, got %d", c.JackknifeFolds)
	}
	return nil
}

// Boundary bundles the begin, end and cue token classifiers.
type Boundary struct {
	Begin *perceptron.Perceptron `json:"begin"`
	End   *perceptron.Perceptron `json:"end"`
	Cue   *perceptron.Perceptron `json:"cue"`

	config BoundaryConfig
	rng    *rand.Rand
}

// NewBoundary creates untrained classifiers with margins from config.
func NewBoundary(config BoundaryConfig) *Boundary {
	b := &Boundary{
		Begin: perceptron.New(),
		End:   perceptron.New(),
		Cue:   perceptron.New(),
	}
	b.Begin.MarginPositive = config.BeginMargin
	b.End.MarginPositive = config.EndMargin
	b.Cue.MarginPositive = config.CueMargin
	b.Configure(config)
	return b
}

// Configure sets the config and reseeds the token shuffle. Loaded models
// call it after decoding.
func (b *Boundary) Configure(config BoundaryConfig) {
	b.config = config
	b.rng = rand.New(rand.NewPCG(config.TokenSeed, config.TokenSeed))
}

func (b *Boundary) shuffledTokens(doc *corpus.Document) []*corpus.Token {
	tokens := make([]*corpus.Token, len(doc.Tokens))
	copy(tokens, doc.Tokens)
	b.rng.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })
	return tokens
}

func (b *Boundary) shuffledDocuments(docs []*corpus.Document) []*corpus.Document {
	out := make([]*corpus.Document, len(docs))
	copy(out, docs)
	rng := rand.New(rand.NewPCG(b.config.DocumentSeed, b.config.DocumentSeed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// ScoreCues trains the cue classifier on doc when training, then stores the
// averaged cue score on every token. Cues are scored from the upstream token
// features only, never from features derived from earlier cue predictions.
func (b *Boundary) ScoreCues(doc *corpus.Document, training bool) {
	tokens := b.shuffledTokens(doc)
	if training {
		for _, t := range tokens {
			b.Cue.Train(t.Features, t.GoldCue, b.config.Rate)
		}
	}
	for _, t := range tokens {
		t.CueScore = b.Cue.Score(t.Features, true)
	}
}

// ScoreBoundaries does for begin and end what ScoreCues does for cues.
func (b *Boundary) ScoreBoundaries(doc *corpus.Document, training bool) {
	tokens := b.shuffledTokens(doc)
	if training {
		for _, t := range tokens {
			fs := t.BoundaryFeatures()
			b.Begin.Train(fs, doc.StartsGold(t.Position), b.config.Rate)
			b.End.Train(fs, doc.EndsGold(t.Position), b.config.Rate)
		}
	}
	for _, t := range tokens {
		fs := t.BoundaryFeatures()
		t.BeginScore = b.Begin.Score(fs, true)
		t.EndScore = b.End.Score(fs, true)
	}
}

// TrainCues runs epochs of cue training over a shuffled copy of docs.
func (b *Boundary) TrainCues(docs []*corpus.Document, epochs int) {
	shuffled := b.shuffledDocuments(docs)
	for epoch := range epochs {
		for _, doc := range shuffled {
			b.ScoreCues(doc, true)
		}
		slog.Debug("Cue epoch", "epoch", epoch+1, "updates", b.Cue.NumUpdates)
	}
}

// TrainBoundaries runs epochs of begin/end training over a shuffled copy of docs.
func (b *Boundary) TrainBoundaries(docs []*corpus.Document, epochs int) {
	shuffled := b.shuffledDocuments(docs)
	for epoch := range epochs {
		for _, doc := range shuffled {
			b.ScoreBoundaries(doc, true)
		}
		slog.Debug("Boundary epoch", "epoch", epoch+1,
			"begin_updates", b.Begin.NumUpdates, "end_updates", b.End.NumUpdates)
	}
}

// PredictCues scores cues without training.
func (b *Boundary) PredictCues(docs []*corpus.Document) {
	for _, doc := range docs {
		b.ScoreCues(doc, false)
	}
}

// PredictBoundaries scores begin and end without training.
func (b *Boundary) PredictBoundaries(docs []*corpus.Document) {
	for _, doc := range docs {
		b.ScoreBoundaries(doc, false)
	}
}

// ClearCues drops predicted cues and the features derived from them.
func ClearCues(docs []*corpus.Document) {
	for _, doc := range docs {
		for _, t := range doc.Tokens {
			t.PredictedCue = false
			t.CueFeatures = nil
		}
	}
}

// LabelCues marks tokens with a positive cue score as predicted cues.
func LabelCues(docs []*corpus.Document) {
	for _, doc := range docs {
		for _, t := range doc.Tokens {
			t.PredictedCue = t.CueScore > 0
		}
	}
}

// Interval is a closed range of document indexes.
type Interval struct {
	Begin int
	End   int
}

// CVTestOffsets splits n documents into folds contiguous test intervals.
// The last fold absorbs the remainder.
func CVTestOffsets(n, folds int) []Interval {
	if folds <= 0 || n == 0 {
		return nil
	}
	folds = min(folds, n)
	size := n / folds
	out := make([]Interval, folds)
	for i := range folds {
		out[i] = Interval{Begin: i * size, End: (i+1)*size - 1}
	}
	out[folds-1].End = n - 1
	return out
}

// SplitFold returns the documents outside and inside iv.
func SplitFold(docs []*corpus.Document, iv Interval) (train, test []*corpus.Document) {
	for i, d := range docs {
		if i < iv.Begin || i > iv.End {
			train = append(train, d)
		} else {
			test = append(test, d)
		}
	}
	return train, test
}

// JackknifeCues gives every training document cue labels from a classifier
// that never saw it. The bundle's own cue classifier is left untouched.
func (b *Boundary) JackknifeCues(docs []*corpus.Document) {
	saved := b.Cue
	defer func() { b.Cue = saved }()

	for fold, iv := range CVTestOffsets(len(docs), b.config.JackknifeFolds) {
		train, test := SplitFold(docs, iv)
		b.Cue = perceptron.New()
		b.Cue.MarginPositive = b.config.CueMargin
		b.TrainCues(train, b.config.CueEpochs)
		b.PredictCues(test)
		LabelCues(test)
		slog.Debug("Jackknife fold", "fold", fold, "train", len(train), "test", len(test))
	}
}

// Fit trains all three classifiers on train and applies them to train and
// every other split. Cue features are attached between the cue and the
// boundary stage.
func (b *Boundary) Fit(train []*corpus.Document, others ...[]*corpus.Document) {
	all := append([][]*corpus.Document{train}, others...)
	for _, docs := range all {
		ClearCues(docs)
	}

	if b.config.Jackknifing {
		b.JackknifeCues(train)
	}
	b.TrainCues(train, b.config.CueEpochs)
	for i, docs := range all {
		if i == 0 && b.config.Jackknifing {
			continue
		}
		b.PredictCues(docs)
		LabelCues(docs)
	}

	for _, docs := range all {
		for _, doc := range docs {
			features.AddCueFeatures(doc)
		}
	}

	b.TrainBoundaries(train, b.config.BoundaryEpochs)
	for _, docs := range all {
		b.PredictBoundaries(docs)
	}
}

// Apply runs trained classifiers over docs: cues, cue features, boundaries.
func (b *Boundary) Apply(docs []*corpus.Document) {
	ClearCues(docs)
	b.PredictCues(docs)
	LabelCues(docs)
	for _, doc := range docs {
		features.AddCueFeatures(doc)
	}
	b.PredictBoundaries(docs)
}
