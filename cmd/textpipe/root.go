package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textpipe/internal/config"
	"github.com/jackzampolin/textpipe/internal/home"
	"github.com/jackzampolin/textpipe/internal/report"
	"github.com/jackzampolin/textpipe/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	logger  *slog.Logger
	printer *report.Printer
)

var rootCmd = &cobra.Command{
	Use:   "textpipe",
	Short: "Configurable text annotation pipelines over single documents or batches",
	Long: `textpipe runs an ordered list of annotation stages (tokenization, sentence
splitting, lemmas, stop words, phrases, entities, categories, quotes and
sentiment) over text.

Stages declare what they require and provide; pipelines are checked before
they run. Batch mode annotates many files concurrently, writing one artifact
per input in text, xml, json, conll or serialized form.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)

		format, err := report.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		printer = report.NewPrinter(cmd.OutOrStdout(), format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.textpipe/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "textpipe home directory (default: ~/.textpipe)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the home directory and loads configuration from it.
func loadConfig() (*config.Manager, *home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, err
	}
	return mgr, h, nil
}
