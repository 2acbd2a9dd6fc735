package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

func newIndexCommand(state *cliState) *cobra.Command {
	var perCategory int
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed food descriptions into the persistent semantic index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := state.cfg
			if cfg.RAG.IndexPath == "" {
				return errors.New("rag.index_path must be set to persist the index")
			}
			if perCategory <= 0 {
				perCategory = cfg.RAG.IndexPerCategory
			}

			store, err := foodstore.OpenSQLite(cmd.Context(), cfg.Storage.FoodDBPath, foodstore.WithLogger(logging.NewComponentLogger("foodstore")))
			if err != nil {
				return fmt.Errorf("%w (run `nutribot ingest` first)", err)
			}
			defer store.Close()

			idx, err := foodstore.NewSemanticIndex(
				foodstore.SemanticConfig{PersistPath: cfg.RAG.IndexPath},
				store,
				foodstore.OllamaEmbeddingFunc(cfg.RAG.EmbeddingModel, cfg.LLM.BaseURL),
			)
			if err != nil {
				return err
			}
			n, err := idx.IndexCategories(cmd.Context(), perCategory)
			if err != nil {
				return fmt.Errorf("indexed %d foods before failing: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d foods into %s (%d total)\n", n, cfg.RAG.IndexPath, idx.Count())
			return nil
		},
	}
	cmd.Flags().IntVar(&perCategory, "per-category", 0, "foods sampled per category (default: rag.index_per_category)")
	return cmd
}
