package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/qsample"
	"github.com/happyhackingspace/qsample/internal/config"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var dataFolder string
	var cvFolds int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate span prediction via grouped cross-validation",
		Example: `  qsample evaluate --data-folder data --cv 10
  qsample evaluate --method greedy
  qsample evaluate --method crf --config qsample.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cv") {
				cfg.Folds = cvFolds
			}
			slog.Info("Evaluating", "folds", cfg.Folds, "method", cfg.Method, "data-folder", dataFolder)

			start := time.Now()
			result, err := qsample.Evaluate(dataFolder, &qsample.EvalConfig{
				Config: &cfg,
				OnFold: func(fold, folds int) {
					slog.Info("Fold done", "fold", fold+1, "of", folds)
				},
			})
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "duration", time.Since(start))

			fmt.Printf("Method: %s, %d folds, %d documents\n\n", result.Method, result.Folds, result.Documents)
			return result.Report.Write(os.Stdout)
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to annotation data folder")
	cmd.Flags().IntVar(&cvFolds, "cv", 10, "Number of cross-validation folds")
	config.RegisterFlags(cmd.Flags())
	return cmd
}
