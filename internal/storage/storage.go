// Package storage reads annotated corpora from a data folder and writes
// predictions.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/internal/htmlutil"
)

// Split names a part of the corpus.
type Split string

const (
	SplitAll   Split = ""
	SplitTrain Split = "train"
	SplitDev   Split = "dev"
	SplitTest  Split = "test"
)

// ParseSplit parses a split name. The empty string and "all" select every
// file.
func ParseSplit(s string) (Split, error) {
	switch sp := Split(strings.ToLower(s)); sp {
	case SplitTrain, SplitDev, SplitTest:
		return sp, nil
	case SplitAll, "all":
		return SplitAll, nil
	}
	return "", fmt.Errorf("unknown split %q", s)
}

// File formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatHTML  = "html"
)

// FormatOf returns the format of a file name, or "" if unsupported.
func FormatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".html", ".htm":
		return FormatHTML
	}
	return ""
}

// IndexFile maps corpus file names to splits.
const IndexFile = "index.json"

// Storage wraps the corpus data folder.
type Storage struct {
	Folder string
}

// NewStorage creates a Storage for the given data folder.
func NewStorage(folder string) *Storage {
	return &Storage{Folder: folder}
}

// GetIndex reads the index file. A missing index yields an empty map.
func (s *Storage) GetIndex() (map[string]Split, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Split{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", IndexFile, err)
	}
	index := make(map[string]Split, len(raw))
	for name, v := range raw {
		sp, err := ParseSplit(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", IndexFile, name, err)
		}
		index[filepath.ToSlash(name)] = sp
	}
	return index, nil
}

// Files lists the corpus files of the folder relative to it, sorted.
func (s *Storage) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.Folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || FormatOf(path) == "" {
			return nil
		}
		rel, err := filepath.Rel(s.Folder, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == IndexFile {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// IterOptions controls document loading.
type IterOptions struct {
	Split          Split
	DropDuplicates bool
	// Features computes lexical token features for documents without any.
	Features bool
	// Concurrency bounds the number of files read at once.
	Concurrency int
}

// DefaultIterOptions returns the default options for loading documents.
func DefaultIterOptions() IterOptions {
	return IterOptions{
		DropDuplicates: true,
		Features:       true,
		Concurrency:    runtime.GOMAXPROCS(0),
	}
}

// IterDocuments loads the documents of the folder. Files not listed in the
// index belong to the train split. Results are ordered by file, then by
// position within the file.
func (s *Storage) IterDocuments(ctx context.Context, opts IterOptions) ([]*corpus.Document, error) {
	index, err := s.GetIndex()
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}
	files, err := s.Files()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.Folder, err)
	}
	if opts.Split != SplitAll {
		kept := files[:0]
		for _, f := range files {
			sp, ok := index[f]
			if !ok {
				sp = SplitTrain
			}
			if sp == opts.Split {
				kept = append(kept, f)
			}
		}
		files = kept
	}

	loaded := make([][]*corpus.Document, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs, err := ReadFile(filepath.Join(s.Folder, filepath.FromSlash(name)))
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			loaded[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool)
	var out []*corpus.Document
	for i, docs := range loaded {
		for _, d := range docs {
			if opts.DropDuplicates {
				fp := Fingerprint(d)
				if seen[fp] {
					slog.Debug("dropping duplicate document", "file", files[i], "id", d.ID)
					continue
				}
				seen[fp] = true
			}
			if opts.Features && !HasFeatures(d) {
				features.TokenFeatures(d)
			}
			out = append(out, d)
		}
	}
	slog.Debug("loaded documents", "folder", s.Folder, "files", len(files), "documents", len(out))
	return out, nil
}

// HasFeatures reports whether any token of d carries features.
func HasFeatures(d *corpus.Document) bool {
	for _, t := range d.Tokens {
		if len(t.Features) > 0 {
			return true
		}
	}
	return false
}

// Fingerprint hashes the token texts of d.
func Fingerprint(d *corpus.Document) uint64 {
	h := xxhash.New()
	for _, t := range d.Tokens {
		_, _ = h.WriteString(t.Text)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// ReadFile reads the documents of one corpus file.
func ReadFile(path string) ([]*corpus.Document, error) {
	format := FormatOf(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := ReadDocuments(f, format)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, d := range docs {
		if d.ID == "" {
			d.ID = fmt.Sprintf("%s-%d", base, i)
		}
	}
	return docs, nil
}

// ReadDocuments decodes documents in the given format. A JSON input may hold
// one document or an array of them.
func ReadDocuments(r io.Reader, format string) ([]*corpus.Document, error) {
	var docs []*corpus.Document
	switch format {
	case FormatHTML:
		return htmlutil.ParseAnnotated(r)
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(data, &docs); err != nil {
				return nil, fmt.Errorf("decode documents: %w", err)
			}
		} else {
			var d corpus.Document
			if err := json.Unmarshal(data, &d); err != nil {
				return nil, fmt.Errorf("decode document: %w", err)
			}
			docs = append(docs, &d)
		}
	case FormatJSONL:
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		for line := 1; sc.Scan(); line++ {
			if strings.TrimSpace(sc.Text()) == "" {
				continue
			}
			var d corpus.Document
			if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			docs = append(docs, &d)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	for i, d := range docs {
		if d == nil {
			return nil, fmt.Errorf("document %d is null", i)
		}
		if err := validate(d); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// validate initializes a decoded document and range-checks its gold spans.
func validate(d *corpus.Document) error {
	for i, t := range d.Tokens {
		if t == nil {
			return fmt.Errorf("document %q: token %d is null", d.ID, i)
		}
	}
	d.Init()
	for i, g := range d.Gold {
		if g == nil {
			return fmt.Errorf("document %q: gold span %d is null", d.ID, i)
		}
		if _, err := corpus.NewSpan(d, g.Begin, g.End, g.Label); err != nil {
			return err
		}
		if g.Label == "" {
			g.Label = corpus.ContentLabel
		}
	}
	return nil
}

// WriteDocument writes d as one JSON line that ReadDocuments can read back.
func WriteDocument(w io.Writer, d *corpus.Document) error {
	if err := json.NewEncoder(w).Encode(d); err != nil {
		return fmt.Errorf("write document %q: %w", d.ID, err)
	}
	return nil
}

// Prediction is one line of prediction output.
type Prediction struct {
	ID    string         `json:"id"`
	URL   string         `json:"url,omitempty"`
	Spans []*corpus.Span `json:"spans"`
	Cues  []int          `json:"cues,omitempty"`
	Text  []string       `json:"text,omitempty"`
}

// NewPrediction collects the predicted spans and cues of d. With withText
// set the covered text of every span is included.
func NewPrediction(d *corpus.Document, withText bool) Prediction {
	p := Prediction{ID: d.ID, URL: d.URL, Spans: []*corpus.Span{}}
	if d.Predicted != nil {
		p.Spans = d.Predicted.Spans()
	}
	for i, t := range d.Tokens {
		if t.PredictedCue {
			p.Cues = append(p.Cues, i)
		}
	}
	if withText {
		for _, s := range p.Spans {
			words := make([]string, 0, s.Length())
			for i := s.Begin; i <= s.End; i++ {
				words = append(words, d.Tokens[i].Text)
			}
			p.Text = append(p.Text, strings.Join(words, " "))
		}
	}
	return p
}

// WritePredictions writes one JSON line per document.
func WritePredictions(w io.Writer, docs []*corpus.Document, withText bool) error {
	enc := json.NewEncoder(w)
	for _, d := range docs {
		if err := enc.Encode(NewPrediction(d, withText)); err != nil {
			return fmt.Errorf("write prediction %q: %w", d.ID, err)
		}
	}
	return nil
}

// GetDomain extracts the registrable domain name from a URL, without its
// public suffix. It groups documents for cross validation.
func GetDomain(rawURL string) string {
	host := rawURL
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.LastIndex(host, "@"); idx >= 0 {
		host = host[idx+1:]
	}
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	host = strings.ToLower(host)

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	if idx := strings.Index(domain, "."); idx >= 0 {
		return domain[:idx]
	}
	return domain
}
