package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/qsample"
	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/eval"
	"github.com/happyhackingspace/qsample/features"
	"github.com/happyhackingspace/qsample/internal/htmlutil"
	"github.com/happyhackingspace/qsample/internal/storage"
)

func (c *CLI) newRunCommand() *cobra.Command {
	var modelPath string
	var format string
	var asHTML bool
	var withText bool
	var report bool

	cmd := &cobra.Command{
		Use:   "run [url-or-file]",
		Short: "Predict quotation spans in a URL, corpus file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		Example: `  # Predict spans in an annotated HTML file
  qsample run articles.html

  # Predict spans in the <article> elements of a web page
  qsample run https://example.org/news/story

  # Pipe JSON lines documents
  cat docs.jsonl | qsample run --format jsonl

  # Render predictions as HTML
  qsample run articles.html --html > predicted.html

  # Score predictions against the gold annotations of the input
  qsample run test.jsonl --report

  # Use a custom model file
  qsample run docs.json --model custom.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var target string
			var err error

			if len(args) == 0 {
				if isStdinTerminal() {
					return cmd.Help()
				}
				data, err = readFromStdin()
				target = "stdin"
			} else {
				target = args[0]
				slog.Debug("Reading input", "target", target)
				data, err = fetch(target)
			}
			if err != nil {
				return err
			}

			f := format
			if f == "" {
				f = detectFormat(target, data)
			}
			docs, err := storage.ReadDocuments(bytes.NewReader(data), f)
			if err != nil {
				return fmt.Errorf("read %s: %w", target, err)
			}
			for _, d := range docs {
				if !storage.HasFeatures(d) {
					features.TokenFeatures(d)
				}
			}
			slog.Debug("Documents read", "target", target, "format", f, "documents", len(docs))

			start := time.Now()
			p, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			slog.Debug("Model loaded", "duration", time.Since(start))

			start = time.Now()
			if err := p.Predict(docs); err != nil {
				return err
			}
			slog.Debug("Prediction completed", "documents", len(docs), "duration", time.Since(start))

			if report {
				if documentsWithGold(docs) == 0 {
					slog.Warn("Input has no gold annotations", "target", target)
				}
				r, err := eval.NewReport(docs)
				if err != nil {
					return err
				}
				return r.Write(os.Stdout)
			}
			if asHTML {
				return htmlutil.Render(os.Stdout, docs)
			}
			return storage.WritePredictions(os.Stdout, docs, withText)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Path to model file (default: model.json up to the module root)")
	cmd.Flags().StringVar(&format, "format", "", "Input format: json, jsonl or html (default: detect)")
	cmd.Flags().BoolVar(&asHTML, "html", false, "Write predictions as annotated HTML")
	cmd.Flags().BoolVar(&withText, "text", false, "Include the text of every predicted span")
	cmd.Flags().BoolVar(&report, "report", false, "Print scores against the input's gold annotations")
	return cmd
}

func isStdinTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func loadModel(modelPath string) (*qsample.Pipeline, error) {
	if modelPath != "" {
		slog.Debug("Loading custom model", "path", modelPath)
		return qsample.Load(modelPath)
	}
	return qsample.New()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func fetch(target string) ([]byte, error) {
	if isURL(target) {
		resp, err := http.Get(target)
		if err != nil {
			return nil, fmt.Errorf("fetch URL: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch URL: HTTP %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return body, nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func readFromStdin() ([]byte, error) {
	slog.Debug("Reading from stdin")
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("stdin is empty")
	}
	return body, nil
}

// detectFormat picks the input format from the file name, falling back to
// the shape of the content.
func detectFormat(target string, data []byte) string {
	if !isURL(target) {
		if f := storage.FormatOf(target); f != "" {
			return f
		}
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, trimmed[0] == '<':
		return storage.FormatHTML
	case trimmed[0] == '[':
		return storage.FormatJSON
	}
	lines := 0
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			return storage.FormatJSON
		}
		lines++
	}
	if lines > 1 {
		return storage.FormatJSONL
	}
	return storage.FormatJSON
}

// documentsWithGold counts documents carrying gold annotations.
func documentsWithGold(docs []*corpus.Document) int {
	n := 0
	for _, d := range docs {
		if len(d.Gold) > 0 {
			n++
		}
	}
	return n
}
