// Package cli wires the qsample commands: training, prediction,
// cross-validation, corpus maintenance and self-update.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/qsample"
	"github.com/happyhackingspace/qsample/internal/banner"
	"github.com/happyhackingspace/qsample/internal/config"
)

// levelSilent is above every level slog emits.
const levelSilent = slog.Level(100)

// CLI holds the root command and the global flag values.
type CLI struct {
	version    string
	verbose    bool
	silent     bool
	configPath string
	ready      bool
	stderr     io.Writer
	root       *cobra.Command
}

// New builds the command tree for the given version.
func New(version string) *CLI {
	c := &CLI{version: version, stderr: os.Stderr}
	c.root = c.newRootCommand()
	return c
}

func (c *CLI) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "qsample",
		Short: "Find quotation content spans in news text",
		Long: `qsample detects the content of direct, indirect and mixed quotations.

Token classifiers score cues and span boundaries; a seeded sampler proposes
candidate spans and a span perceptron decides which ones to keep. Models are
trained from a folder of annotated JSON, JSON lines or HTML documents.`,
		Version:      c.version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.setupLogging()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Log sampler and classifier progress at debug level")
	flags.BoolVarP(&c.silent, "silent", "s", false, "Print neither logs nor the banner")
	flags.StringVar(&c.configPath, "config", "", "Settings file (YAML, TOML or JSON)")

	help := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		c.setupLogging()
		help(cmd, args)
	})

	root.AddCommand(
		c.newTrainCommand(),
		c.newRunCommand(),
		c.newEvaluateCommand(),
		c.newDataCommand(),
		c.newUpCommand(),
	)
	return root
}

// Run executes the command selected by the arguments.
func (c *CLI) Run() error {
	return c.root.Execute()
}

// SetArgs overrides the command-line arguments, for tests.
func (c *CLI) SetArgs(args []string) {
	c.root.SetArgs(args)
}

func (c *CLI) logLevel() slog.Level {
	switch {
	case c.silent:
		return levelSilent
	case c.verbose:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupLogging installs the stderr handler once per process run and prints
// the banner unless silenced.
func (c *CLI) setupLogging() {
	if c.ready {
		return
	}
	c.ready = true

	slog.SetDefault(slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: c.logLevel()})))
	if !c.silent {
		fmt.Fprint(c.stderr, banner.Banner(c.version))
	}
	slog.Debug("qsample starting", "version", c.version, "config", c.configPath)
}

// loadConfig merges the settings file, QSAMPLE_ variables and the flags of cmd.
func (c *CLI) loadConfig(cmd *cobra.Command) (qsample.Config, error) {
	cfg, err := config.Load(c.configPath, cmd.Flags())
	if err != nil {
		return qsample.Config{}, err
	}
	slog.Debug("Settings resolved", "file", c.configPath, "method", cfg.Method,
		"folds", cfg.Folds, "outer_iter", cfg.Sampler.OuterIter)
	return cfg, nil
}
