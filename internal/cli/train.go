package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/happyhackingspace/qsample"
	"github.com/happyhackingspace/qsample/internal/config"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	var dataFolder string
	var dumpPath string
	var metrics bool

	cmd := &cobra.Command{
		Use:   "train <modelfile>",
		Short: "Train a model on an annotated corpus",
		Args:  cobra.ExactArgs(1),
		Example: `  qsample train model.json --data-folder data
  qsample train model.json --outer-iter 10 --metrics
  qsample train model.json --method crf -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath := args[0]
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			slog.Info("Training model", "data-folder", dataFolder, "output", modelPath, "method", cfg.Method)

			tc := &qsample.TrainConfig{Config: &cfg}
			showBar := !c.silent && cfg.Method == qsample.MethodSample && cfg.Sampler.OuterIter > 0
			if showBar {
				uiprogress.Start()
				bar := uiprogress.AddBar(cfg.Sampler.OuterIter)
				bar.AppendCompleted()
				bar.PrependElapsed()
				bar.PrependFunc(func(b *uiprogress.Bar) string {
					return fmt.Sprintf("epoch %d/%d", b.Current(), cfg.Sampler.OuterIter)
				})
				tc.OnEpoch = func(int) { bar.Incr() }
			}

			start := time.Now()
			p, err := qsample.Train(dataFolder, tc)
			if showBar {
				uiprogress.Stop()
			}
			if err != nil {
				return err
			}
			slog.Debug("Training completed", "duration", time.Since(start))

			if err := p.Save(modelPath); err != nil {
				return err
			}
			slog.Info("Model saved", "path", modelPath)

			if dumpPath != "" {
				if err := dumpWeights(p, dumpPath); err != nil {
					return err
				}
				slog.Info("Weights written", "path", dumpPath)
			}
			if metrics {
				return writeMetrics(os.Stdout)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to annotation data folder")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "Write the averaged span model weights to this file")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Print sampler counters after training")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func dumpWeights(p *qsample.Pipeline, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := p.DumpWeights(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writeMetrics prints every qsample counter of the default registry as
// "name{labels} value" lines.
func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "qsample_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
