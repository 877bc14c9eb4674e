package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrank/internal/pipeline"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the sections of a document collection for a persona and task",
	Long: `Rank detects heading lines in every document of the input directory, embeds
each heading with its surrounding text, and orders all sections by similarity
to "<persona> - <task>" plus a keyword boost. The result is a single JSON file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if v, _ := flags.GetString("input"); v != "" {
			cfg.RankInputDir = v
		}
		if v, _ := flags.GetString("output"); v != "" {
			cfg.RankOutputDir = v
		}
		if v, _ := flags.GetString("out-file"); v != "" {
			cfg.RankOutputFile = v
		}
		if v, _ := flags.GetString("persona"); v != "" {
			cfg.Persona = v
		}
		if v, _ := flags.GetString("task"); v != "" {
			cfg.Task = v
		}
		if flags.Changed("top-k") {
			cfg.TopK, _ = flags.GetInt("top-k")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		embedder, _, err := newEmbedder(cfg, logger)
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, embedder, logger)
		p.OnProgress = progress("parsing")

		outPath := filepath.Join(cfg.RankOutputDir, cfg.RankOutputFile)
		run, err := p.RunRanking(cmd.Context(), cfg.RankInputDir, outPath, cfg.Persona, cfg.Task)
		if err != nil {
			return err
		}
		summary("ranked %d documents, output written to %s in %s", len(run.Files), outPath, elapsed(run.Elapsed()))
		return nil
	},
}

func init() {
	rankCmd.Flags().String("input", "", "directory of documents (default ./input)")
	rankCmd.Flags().String("output", "", "output directory (default ./output)")
	rankCmd.Flags().String("out-file", "", "output file name (default travel_planner.json)")
	rankCmd.Flags().String("persona", "", "persona the ranking is for")
	rankCmd.Flags().String("task", "", "job to be done")
	rankCmd.Flags().Int("top-k", 0, "keep only the top K sections (0 keeps all)")

	rootCmd.AddCommand(rankCmd)
}
