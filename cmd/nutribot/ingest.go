package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/darrellrafa/Nutribot/internal/ingest"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

func newIngestCommand(state *cliState) *cobra.Command {
	var (
		datasetDir string
		dbPath     string
		batchSize  int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the food database from a FoodData Central CSV export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = state.cfg.Storage.FoodDBPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := ingest.Run(ctx, ingest.Config{
				DatasetDir: datasetDir,
				DBPath:     dbPath,
				BatchSize:  batchSize,
				Logger:     logging.NewComponentLogger("ingest"),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s (%.1f MB)\n", dbPath, float64(stats.SizeBytes)/(1024*1024))
			fmt.Fprintf(out, "Foods: %d\n", stats.Foods)
			types := make([]string, 0, len(stats.FoodsByType))
			for t := range stats.FoodsByType {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(out, "  %s: %d\n", t, stats.FoodsByType[t])
			}
			fmt.Fprintf(out, "Nutrients: %d\nFood nutrients: %d\nCategories: %d\nPortions: %d\nBranded enriched: %d\n",
				stats.Nutrients, stats.FoodNutrients, stats.Categories, stats.Portions, stats.Enriched)
			fmt.Fprintf(out, "Elapsed: %s\n", stats.Elapsed.Round(1e6))
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetDir, "dataset", "dataset/FoodData_Central_csv", "directory holding the CSV export")
	cmd.Flags().StringVar(&dbPath, "db", "", "output database (default: storage.food_db_path)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per insert transaction")
	return cmd
}
