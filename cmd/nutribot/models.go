package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/darrellrafa/Nutribot/internal/llm"
)

func newModelsCommand(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed on the configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := state.cfg
			gateway, err := llm.New(llm.Config{
				Provider:   cfg.LLM.Provider,
				BaseURL:    cfg.LLM.BaseURL,
				APIKey:     cfg.LLM.APIKey,
				Timeout:    cfg.LLM.Timeout,
				MaxRetries: 0,
			})
			if err != nil {
				return err
			}
			installed, err := gateway.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models at %s: %w", cfg.LLM.BaseURL, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFAMILY\tPARAMETERS\tQUANTIZATION")
			for _, m := range installed {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, m.Family, m.ParameterSize, m.Quantization)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, role := range []struct{ label, name string }{
				{"default", cfg.LLM.DefaultModel},
				{"summarization", cfg.LLM.SummarizationModel},
			} {
				status := "missing"
				if _, ok := llm.ResolveModel(installed, role.name); ok {
					status = "installed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s model %s: %s\n", role.label, role.name, status)
			}
			return nil
		},
	}
}
