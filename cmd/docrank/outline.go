package main

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/docrank/internal/pipeline"
)

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Write a heading outline JSON for every PDF in a directory",
	Long: `Outline reads every PDF in the input directory and writes <name>.json to the
output directory with the document title and its H1-H3 headings, classified
by font size. Unreadable PDFs still get an empty outline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetString("input"); v != "" {
			cfg.OutlineInputDir = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			cfg.OutlineOutputDir = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		p := pipeline.New(cfg, nil, logger)
		p.OnProgress = progress("outlining")

		run, err := p.RunOutline(cmd.Context(), cfg.OutlineInputDir, cfg.OutlineOutputDir)
		if err != nil {
			return err
		}
		ok, empty, failed := run.Counts()
		if len(run.Files) == 0 {
			warning("no PDF files in %s", cfg.OutlineInputDir)
			return nil
		}
		summary("%d outlines written to %s (%d ok, %d empty, %d failed) in %s",
			ok+empty, cfg.OutlineOutputDir, ok, empty, failed, elapsed(run.Elapsed()))
		return nil
	},
}

func init() {
	outlineCmd.Flags().String("input", "", "directory of PDFs (default $DOCRANK_OUTLINE_INPUT_DIR or /app/input)")
	outlineCmd.Flags().String("output", "", "directory for outline JSON (default $DOCRANK_OUTLINE_OUTPUT_DIR or /app/output)")

	rootCmd.AddCommand(outlineCmd)
}
