package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/happyhackingspace/qsample/corpus"
)

func TestGetDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.org/page", "example"},
		{"https://foo.example.co.uk/path", "example"},
		{"http://www.google.com", "google"},
		{"example.org", "example"},
		{"http://localhost:8080/path", "localhost"},
		{"https://user@News.BBC.co.uk:443/a?b=c", "bbc"},
	}
	for _, tt := range tests {
		got := GetDomain(tt.url)
		if got != tt.want {
			t.Errorf("GetDomain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestParseSplit(t *testing.T) {
	for in, want := range map[string]Split{"train": SplitTrain, "DEV": SplitDev, "test": SplitTest, "all": SplitAll, "": SplitAll} {
		got, err := ParseSplit(in)
		if err != nil || got != want {
			t.Errorf("ParseSplit(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSplit("validation"); err == nil {
		t.Error("expected error for unknown split")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const (
	docA = `{"id":"a","url":"https://example.org/1","tokens":[{"text":"He"},{"text":"said"},{"text":"hi"}],"gold":[{"begin":2,"end":2}]}`
	docB = `{"id":"b","tokens":[{"text":"No"},{"text":"quotes"}]}`
	// same text as docA
	docC = `{"id":"c","tokens":[{"text":"He"},{"text":"said"},{"text":"hi"}]}`
)

func testFolder(t *testing.T) *Storage {
	dir := t.TempDir()
	writeFile(t, dir, "one.json", docA)
	writeFile(t, dir, "two.jsonl", docB+"\n\n"+docC+"\n")
	writeFile(t, dir, "web/three.html", `<article id="h">Officials <span class="cue">said</span> <span class="content">"it works"</span>.</article>`)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, IndexFile, `{"one.json":"train","two.jsonl":"test"}`)
	return NewStorage(dir)
}

func ids(docs []*corpus.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestIterDocuments(t *testing.T) {
	s := testFolder(t)

	files, err := s.Files()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"one.json", "two.jsonl", "web/three.html"}; !reflect.DeepEqual(files, want) {
		t.Errorf("Files = %v, want %v", files, want)
	}

	opts := DefaultIterOptions()
	docs, err := s.IterDocuments(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "h"}; !reflect.DeepEqual(ids(docs), want) {
		t.Errorf("documents = %v, want %v", ids(docs), want)
	}

	a := docs[0]
	if a.Gold[0].Label != corpus.ContentLabel {
		t.Errorf("default label = %q", a.Gold[0].Label)
	}
	if a.Tokens[2].Position != 2 || a.Predicted == nil {
		t.Error("document was not initialized")
	}
	if len(a.Tokens[0].Features) == 0 {
		t.Error("expected token features to be computed")
	}

	opts.DropDuplicates = false
	opts.Split = SplitTest
	docs, err = s.IterDocuments(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"b", "c"}; !reflect.DeepEqual(ids(docs), want) {
		t.Errorf("test documents = %v, want %v", ids(docs), want)
	}

	// unindexed files belong to the train split
	opts.Split = SplitTrain
	docs, err = s.IterDocuments(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "h"}; !reflect.DeepEqual(ids(docs), want) {
		t.Errorf("train documents = %v, want %v", ids(docs), want)
	}
}

func TestIterDocumentsBadGold(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `[{"id":"x","tokens":[{"text":"a"}],"gold":[{"begin":0,"end":3}]}]`)
	_, err := NewStorage(dir).IterDocuments(context.Background(), DefaultIterOptions())
	if err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Errorf("expected error naming the file, got %v", err)
	}
}

func TestReadDocumentsNullEntries(t *testing.T) {
	for _, data := range []string{
		`{"id":"g","tokens":[{"text":"a"}],"gold":[null]}`,
		`{"id":"t","tokens":[{"text":"a"},null]}`,
		`[null]`,
	} {
		_, err := ReadDocuments(strings.NewReader(data), FormatJSON)
		if err == nil || !strings.Contains(err.Error(), "null") {
			t.Errorf("%s: expected null entry error, got %v", data, err)
		}
	}
}

func TestReadFileDefaultsID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "batch.json", `[{"tokens":[{"text":"a"}]},{"tokens":[{"text":"b"}]}]`)
	docs, err := ReadFile(filepath.Join(dir, "batch.json"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"batch-0", "batch-1"}; !reflect.DeepEqual(ids(docs), want) {
		t.Errorf("ids = %v, want %v", ids(docs), want)
	}
	if _, err := ReadFile(filepath.Join(dir, "x.csv")); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestFingerprint(t *testing.T) {
	mk := func(words ...string) *corpus.Document {
		tokens := make([]*corpus.Token, len(words))
		for i, w := range words {
			tokens[i] = &corpus.Token{Text: w}
		}
		return corpus.NewDocument("", tokens)
	}
	if Fingerprint(mk("a", "b")) != Fingerprint(mk("a", "b")) {
		t.Error("equal texts must have equal fingerprints")
	}
	if Fingerprint(mk("ab")) == Fingerprint(mk("a", "b")) {
		t.Error("token boundaries must change the fingerprint")
	}
}

func TestWritePredictions(t *testing.T) {
	docs, err := ReadDocuments(strings.NewReader(docA), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	d := docs[0]
	s, err := corpus.NewSpan(d, 1, 2, corpus.ContentLabel)
	if err != nil {
		t.Fatal(err)
	}
	d.Predicted.Add(s)
	d.Tokens[1].PredictedCue = true

	var buf bytes.Buffer
	if err := WritePredictions(&buf, docs, true); err != nil {
		t.Fatal(err)
	}
	var p Prediction
	if err := json.Unmarshal(buf.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "a" || p.URL != "https://example.org/1" {
		t.Errorf("ID, URL = %q, %q", p.ID, p.URL)
	}
	if len(p.Spans) != 1 || p.Spans[0].Begin != 1 || p.Spans[0].End != 2 {
		t.Errorf("spans = %v", p.Spans)
	}
	if !reflect.DeepEqual(p.Cues, []int{1}) || !reflect.DeepEqual(p.Text, []string{"said hi"}) {
		t.Errorf("cues, text = %v, %v", p.Cues, p.Text)
	}
}

func TestWriteDocumentRoundTrip(t *testing.T) {
	docs, err := ReadDocuments(strings.NewReader(docA), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	docs[0].Tokens[1].GoldCue = true

	var buf bytes.Buffer
	if err := WriteDocument(&buf, docs[0]); err != nil {
		t.Fatal(err)
	}
	back, err := ReadDocuments(&buf, FormatJSONL)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || !reflect.DeepEqual(texts(back[0]), []string{"He", "said", "hi"}) {
		t.Fatalf("documents = %v", back)
	}
	if !back[0].Tokens[1].GoldCue || len(back[0].Gold) != 1 || back[0].Gold[0].Key() != (corpus.Key{Begin: 2, End: 2}) {
		t.Error("annotations were not preserved")
	}
}

func texts(d *corpus.Document) []string {
	out := make([]string, d.Len())
	for i, t := range d.Tokens {
		out[i] = t.Text
	}
	return out
}

func TestPackUnpack(t *testing.T) {
	src := testFolder(t)
	var buf bytes.Buffer
	n, err := src.Pack(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("packed %d files, want 4", n)
	}

	dst := NewStorage(filepath.Join(t.TempDir(), "copy"))
	got, err := dst.Unpack(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != n {
		t.Errorf("unpacked %d files, want %d", got, n)
	}
	index, err := dst.GetIndex()
	if err != nil {
		t.Fatal(err)
	}
	if index["two.jsonl"] != SplitTest {
		t.Errorf("index = %v", index)
	}
	docs, err := dst.IterDocuments(context.Background(), DefaultIterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "h"}; !reflect.DeepEqual(ids(docs), want) {
		t.Errorf("documents = %v, want %v", ids(docs), want)
	}
}

func TestAssignSplits(t *testing.T) {
	dir := t.TempDir()
	for i := range 10 {
		writeFile(t, dir, fmt.Sprintf("d%02d.json", i), `{"tokens":[{"text":"x"}]}`)
	}
	s := NewStorage(dir)
	index, err := s.AssignSplits(SplitRatios{Dev: 0.2, Test: 0.3, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	counts := map[Split]int{}
	for _, sp := range index {
		counts[sp]++
	}
	if counts[SplitTest] != 3 || counts[SplitDev] != 2 || counts[SplitTrain] != 5 {
		t.Errorf("counts = %v", counts)
	}

	again, err := s.AssignSplits(SplitRatios{Dev: 0.2, Test: 0.3, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(index, again) {
		t.Error("assignment is not reproducible")
	}

	if err := s.WriteIndex(index); err != nil {
		t.Fatal(err)
	}
	read, err := s.GetIndex()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(read, index) {
		t.Errorf("GetIndex = %v, want %v", read, index)
	}

	if _, err := s.AssignSplits(SplitRatios{Dev: 0.6, Test: 0.6}); err == nil {
		t.Error("expected error for ratios above 1")
	}
}
