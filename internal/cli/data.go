package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/internal/storage"
)

func (c *CLI) newDataCommand() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Manage the annotated corpus folder",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	var packFolder string
	packCmd := &cobra.Command{
		Use:   "pack <archive.tar.gz>",
		Short: "Archive the corpus files and index",
		Args:  cobra.ExactArgs(1),
		Example: `  qsample data pack data.tar.gz
  qsample data pack data.tar.gz --data-folder corpus`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dataPack(packFolder, args[0])
		},
	}
	packCmd.Flags().StringVar(&packFolder, "data-folder", "data", "Source folder for the corpus")

	var unpackFolder string
	unpackCmd := &cobra.Command{
		Use:   "unpack <archive-or-url>",
		Short: "Extract a corpus archive into the data folder",
		Args:  cobra.ExactArgs(1),
		Example: `  qsample data unpack data.tar.gz
  qsample data unpack https://example.org/corpus.tar.gz --data-folder data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dataUnpack(unpackFolder, args[0])
		},
	}
	unpackCmd.Flags().StringVar(&unpackFolder, "data-folder", "data", "Destination folder for the corpus")

	var splitFolder string
	var ratios storage.SplitRatios
	splitCmd := &cobra.Command{
		Use:   "split",
		Short: "Assign corpus files to train, dev and test splits",
		Example: `  qsample data split --dev 0.1 --test 0.2
  qsample data split --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storage.NewStorage(splitFolder)
			index, err := store.AssignSplits(ratios)
			if err != nil {
				return err
			}
			if err := store.WriteIndex(index); err != nil {
				return err
			}
			slog.Info("Index written", "folder", splitFolder, "files", len(index))
			return nil
		},
	}
	splitCmd.Flags().StringVar(&splitFolder, "data-folder", "data", "Corpus folder")
	splitCmd.Flags().Float64Var(&ratios.Dev, "dev", 0.1, "Share of files in the dev split")
	splitCmd.Flags().Float64Var(&ratios.Test, "test", 0.1, "Share of files in the test split")
	splitCmd.Flags().Uint64Var(&ratios.Seed, "seed", 123, "Shuffle seed")

	var statsFolder string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count documents, tokens and annotations per split",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dataStats(cmd.Context(), statsFolder, os.Stdout)
		},
	}
	statsCmd.Flags().StringVar(&statsFolder, "data-folder", "data", "Corpus folder")

	dataCmd.AddCommand(packCmd, unpackCmd, splitCmd, statsCmd)
	return dataCmd
}

func dataPack(dataFolder, archive string) error {
	slog.Info("Creating archive", "source", dataFolder, "dest", archive)
	f, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("create %s: %w", archive, err)
	}
	n, err := storage.NewStorage(dataFolder).Pack(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("create archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("Archive created", "path", archive, "files", n)
	return nil
}

func dataUnpack(dataFolder, source string) error {
	slog.Info("Extracting corpus", "source", source, "folder", dataFolder)
	data, err := fetch(source)
	if err != nil {
		return err
	}
	n, err := storage.NewStorage(dataFolder).Unpack(bytes.NewReader(data))
	if err != nil {
		return err
	}
	slog.Info("Corpus extracted", "files", n, "folder", dataFolder)
	return nil
}

type corpusStats struct {
	documents, tokens, cues int
	spans                   map[corpus.SpanType]int
}

func dataStats(ctx context.Context, dataFolder string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store := storage.NewStorage(dataFolder)
	opts := storage.DefaultIterOptions()
	opts.Features = false

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "split\tdocuments\ttokens\tcues\tdirect\tindirect\tmixed")
	for _, split := range []storage.Split{storage.SplitTrain, storage.SplitDev, storage.SplitTest} {
		opts.Split = split
		docs, err := store.IterDocuments(ctx, opts)
		if err != nil {
			return err
		}
		st := corpusStats{spans: make(map[corpus.SpanType]int)}
		for _, d := range docs {
			st.documents++
			st.tokens += d.Len()
			for _, t := range d.Tokens {
				if t.GoldCue {
					st.cues++
				}
			}
			for _, g := range d.Gold {
				st.spans[d.SpanType(g)]++
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n", split, st.documents, st.tokens, st.cues,
			st.spans[corpus.Direct], st.spans[corpus.Indirect], st.spans[corpus.Mixed])
	}
	return tw.Flush()
}
