package qsample

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/internal/storage"
)

var sentences = []string{
	`Officials said " the bridge would reopen soon " on Monday .`,
	`" We are ready " , the mayor said after the vote .`,
	`She told reporters " nothing has changed " and left .`,
	`The minister said " talks will continue " in Paris .`,
	`" It is over " , he said quietly .`,
	`Police said " the road is closed " overnight .`,
}

// quoteDoc marks the span between the first pair of quote tokens as gold
// content and every "said" or "told" as a gold cue.
func quoteDoc(t *testing.T, id, url, text string) *corpus.Document {
	t.Helper()
	var tokens []*corpus.Token
	var quotes []int
	for i, w := range strings.Fields(text) {
		tokens = append(tokens, &corpus.Token{Text: w, GoldCue: w == "said" || w == "told"})
		if w == `"` {
			quotes = append(quotes, i)
		}
	}
	doc := corpus.NewDocument(id, tokens)
	doc.URL = url
	require.Len(t, quotes, 2)
	require.NoError(t, doc.AddGold(quotes[0], quotes[1], corpus.ContentLabel))
	features.TokenFeatures(doc)
	return doc
}

func quoteDocs(t *testing.T) []*corpus.Document {
	docs := make([]*corpus.Document, len(sentences))
	for i, s := range sentences {
		docs[i] = quoteDoc(t, fmt.Sprintf("d%d", i), fmt.Sprintf("https://news.site%d.org/%d", i%3, i), s)
	}
	return docs
}

func smallConfig(method Method) Config {
	c := DefaultConfig()
	c.Method = method
	c.Folds = 3
	c.Sampler.OuterIter = 3
	c.Sampler.InnerIter = 5
	c.Sampler.PredictionIter = 20
	c.Boundary.CueEpochs = 3
	c.Boundary.BoundaryEpochs = 3
	c.CRF.MaxIterations = 20
	return c
}

func spanKeys(docs []*corpus.Document) [][]corpus.Key {
	out := make([][]corpus.Key, len(docs))
	for i, d := range docs {
		for _, s := range d.Predicted.Spans() {
			out[i] = append(out[i], s.Key())
		}
	}
	return out
}

func cueWeights(p *Pipeline) map[string]float64 {
	out := make(map[string]float64)
	p.boundary.Cue.Weights.Features(func(f string, raw, _ float64) { out[f] = raw })
	return out
}

func TestTrainOnReusedDocuments(t *testing.T) {
	docs := quoteDocs(t)

	first, err := NewPipeline(smallConfig(MethodGreedy))
	require.NoError(t, err)
	require.NoError(t, first.Train(docs, nil, nil))

	second, err := NewPipeline(smallConfig(MethodGreedy))
	require.NoError(t, err)
	require.NoError(t, second.Train(docs, nil, nil))

	want := cueWeights(first)
	assert.Equal(t, want, cueWeights(second))
	for f := range want {
		assert.False(t, strings.HasPrefix(f, "CUE-COMES") || strings.HasPrefix(f, "DISTANCE-TO"), f)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{"sample": MethodSample, "GREEDY": MethodGreedy, "crf": MethodCRF, "": MethodSample} {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMethod("beam")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.Folds = 1
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Sampler.LearningRate = 0
	assert.ErrorContains(t, c.Validate(), "sampler")

	c = DefaultConfig()
	c.Boundary.Rate = -1
	assert.ErrorContains(t, c.Validate(), "boundary")

	c = DefaultConfig()
	c.Method = "beam"
	assert.Error(t, c.Validate())
}

func TestPipelineRequiresTraining(t *testing.T) {
	p, err := NewPipeline(smallConfig(MethodSample))
	require.NoError(t, err)
	assert.Error(t, p.Predict(quoteDocs(t)))
	assert.Error(t, p.Write(&bytes.Buffer{}))
	assert.Error(t, p.Train(nil, nil, nil))
}

func TestPipelineSnapshotRoundTrip(t *testing.T) {
	for _, method := range []Method{MethodSample, MethodGreedy, MethodCRF} {
		t.Run(string(method), func(t *testing.T) {
			p, err := NewPipeline(smallConfig(method))
			require.NoError(t, err)

			epochs := 0
			require.NoError(t, p.Train(quoteDocs(t), nil, func(int) { epochs++ }))
			if method == MethodSample {
				assert.Equal(t, 3, epochs)
			}

			first := quoteDocs(t)
			require.NoError(t, p.Predict(first))

			var buf bytes.Buffer
			require.NoError(t, p.Write(&buf))
			loaded, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, p.Config(), loaded.Config())

			second := quoteDocs(t)
			require.NoError(t, loaded.Predict(second))
			assert.Equal(t, spanKeys(first), spanKeys(second))
			for i := range first {
				for j, tok := range first[i].Tokens {
					assert.Equal(t, tok.PredictedCue, second[i].Tokens[j].PredictedCue)
					assert.InDelta(t, tok.BeginScore, second[i].Tokens[j].BeginScore, 1e-9)
				}
			}
		})
	}
}

func TestReadRejectsBadSnapshot(t *testing.T) {
	_, err := Read(strings.NewReader(`{"version":99}`))
	assert.ErrorContains(t, err, "version")

	snap := fmt.Sprintf(`{"version":%d,"config":{"method":"sample","folds":2}}`, snapshotVersion)
	_, err = Read(strings.NewReader(snap))
	assert.Error(t, err)
}

func TestSaveLoadFile(t *testing.T) {
	p, err := NewPipeline(smallConfig(MethodGreedy))
	require.NoError(t, err)
	require.NoError(t, p.Train(quoteDocs(t), nil, nil))

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, p.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, MethodGreedy, loaded.Config().Method)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDumpWeights(t *testing.T) {
	p, err := NewPipeline(smallConfig(MethodSample))
	require.NoError(t, err)
	require.NoError(t, p.Train(quoteDocs(t), nil, nil))

	var buf bytes.Buffer
	require.NoError(t, p.DumpWeights(&buf))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		assert.Regexp(t, `^(BEGIN|END|HIGHER)-`, line)
	}
}

func TestGroupKFold(t *testing.T) {
	groups := []int{0, 1, 0, 2, 1, 3}
	folds := groupKFold(groups, 2)
	require.Len(t, folds, 2)
	assert.Equal(t, []int{0, 2, 3}, folds[0])
	assert.Equal(t, []int{1, 4, 5}, folds[1])

	// never more folds than groups
	assert.Len(t, groupKFold([]int{0, 0, 1}, 10), 2)
}

func TestDomainGroups(t *testing.T) {
	mk := func(id, url string) *corpus.Document {
		d := corpus.NewDocument(id, nil)
		d.URL = url
		return d
	}
	docs := []*corpus.Document{
		mk("a", "https://www.example.org/1"),
		mk("b", "http://news.example.org/2"),
		mk("c", ""),
		mk("d", "https://other.com/x"),
		mk("e", ""),
	}
	assert.Equal(t, []int{0, 0, 1, 2, 3}, domainGroups(docs))
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i, doc := range quoteDocs(t) {
		var buf bytes.Buffer
		require.NoError(t, storage.WriteDocument(&buf, doc))
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("doc%d.json", i)), buf.Bytes(), 0o644))
	}
	return dir
}

func TestTrainFromFolder(t *testing.T) {
	dir := writeCorpus(t)
	config := smallConfig(MethodGreedy)
	p, err := Train(dir, &TrainConfig{Config: &config})
	require.NoError(t, err)
	assert.Equal(t, MethodGreedy, p.Config().Method)

	_, err = Train(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	dir := writeCorpus(t)
	config := smallConfig(MethodGreedy)
	var seen []int
	res, err := Evaluate(dir, &EvalConfig{Config: &config, OnFold: func(fold, _ int) { seen = append(seen, fold) }})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Folds)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, len(sentences), res.Documents)
	// every document is scored exactly once
	assert.Equal(t, len(sentences), res.Report.Strict.TrueCount)
}
