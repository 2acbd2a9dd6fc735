package main

import (
	"github.com/spf13/cobra"

	"github.com/darrellrafa/Nutribot/internal/config"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

// cliState is shared by every subcommand. The root command fills cfg
// before any subcommand runs.
type cliState struct {
	configFile string
	envFiles   []string
	logLevel   string
	cfg        config.RuntimeConfig
}

func newRootCommand() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:          "nutribot",
		Short:        "Conversational meal-planning assistant",
		Long:         "NutriBot answers nutrition questions and builds meal plans grounded in a food composition database.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&state.configFile, "config", "c", "", "config file (default: ./nutribot.yaml or $HOME/.nutribot/nutribot.yaml)")
	flags.StringSliceVar(&state.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment")
	flags.StringVar(&state.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(state),
		newIngestCommand(state),
		newIndexCommand(state),
		newModelsCommand(state),
		newNutritionCommand(state),
	)
	return root
}

func (s *cliState) load() error {
	cfg, err := config.Load(config.WithConfigFile(s.configFile), config.WithEnvFiles(s.envFiles...))
	if err != nil {
		return err
	}
	if s.logLevel != "" {
		cfg.Log.Level = s.logLevel
	}
	logging.Configure(cfg.Log.Observability())
	s.cfg = cfg
	return nil
}
