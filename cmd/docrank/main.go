// Package main is the entry point for the docrank CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/embed"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfg    config.Config
	logger *slog.Logger
	quiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "docrank",
	Short: "Extract PDF outlines and rank document sections for a persona",
	Long: `docrank extracts heading outlines (title, H1-H3) from PDFs by font size, and
ranks the sections of a document collection by relevance to a persona and the
job they need done.

Settings come from DOCRANK_* environment variables, an optional YAML file
(--config) and command-line flags, in increasing priority.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("log-format")
		quiet, _ = cmd.Flags().GetBool("quiet")
		logger = newLogger(format, quiet)

		cfg = config.Load()
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			loaded, err := config.LoadFile(path, cfg)
			if err != nil {
				return err
			}
			cfg = loaded
			logger.Debug("config file loaded", "path", path)
		}
		if cmd.Flags().Changed("embedder") {
			cfg.Embedder, _ = cmd.Flags().GetString("embedder")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file overlaid on environment settings")
	rootCmd.PersistentFlags().String("log-format", "json", "log output format: json or text")
	rootCmd.PersistentFlags().Bool("quiet", false, "only log warnings and errors; no progress bar")
	rootCmd.PersistentFlags().String("embedder", "", "embedding backend: ollama or hash")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newLogger(format string, quiet bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if quiet {
		opts.Level = slog.LevelWarn
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// newEmbedder builds the configured embedder. The returned stats are nil for
// embedders that do not record calls.
func newEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, *embed.Stats, error) {
	switch cfg.Embedder {
	case "hash":
		return embed.NewHash(cfg.HashDim), nil, nil
	default:
		stats := embed.NewStats(cfg.StatsWindow)
		e, err := embed.NewOllama(embed.OllamaConfig{
			BaseURL:    cfg.OllamaURL,
			Model:      cfg.EmbedModel,
			BatchSize:  cfg.EmbedBatchSize,
			RateLimit:  cfg.EmbedRateLimit,
			MaxRetries: cfg.EmbedMaxRetries,
		}, stats, log)
		if err != nil {
			return nil, nil, err
		}
		return e, stats, nil
	}
}

// progress returns a callback that drives a progress bar on stderr, or nil
// in quiet mode.
func progress(description string) func(done, total int, file string) {
	if quiet {
		return nil
	}
	var bar *progressbar.ProgressBar
	return func(done, total int, file string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(color.BlueString(description)),
				progressbar.OptionSetItsString("files"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		bar.Set(done)
	}
}

func summary(format string, a ...any) {
	if quiet {
		return
	}
	fmt.Fprintln(os.Stderr, color.GreenString(format, a...))
}

func warning(format string, a ...any) {
	if quiet {
		return
	}
	fmt.Fprintln(os.Stderr, color.YellowString(format, a...))
}

func elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
