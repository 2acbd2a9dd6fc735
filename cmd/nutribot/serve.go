package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	serverhttp "github.com/darrellrafa/Nutribot/internal/server/http"
)

func newServeCommand(state *cliState) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := state.cfg
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(ctx); err != nil {
					rt.logger.Warn("shutdown: %v", err)
				}
			}()
			rt.checkModels(ctx)

			var gatherer prometheus.Gatherer
			if cfg.Metrics.Enabled {
				gatherer = rt.registry
			}
			srv, err := serverhttp.New(serverhttp.Options{
				Address:     cfg.Server.Address(),
				CORSOrigins: cfg.Server.CORSOrigins,
				RateLimit: serverhttp.RateLimitConfig{
					RequestsPerMinute: cfg.Server.RateLimitPerMinute,
					Burst:             cfg.Server.RateLimitBurst,
				},
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				DefaultModel:    cfg.LLM.DefaultModel,
				Debug:           cfg.Log.Level == "debug",
			}, serverhttp.Deps{
				Assistant: rt.assistant,
				Foods:     rt.foods,
				Semantic:  rt.semantic,
				Models:    rt.gateway,
				Chats:     rt.chats,
				Tokens:    rt.tokens,
				Metrics:   serverhttp.MustNewMetrics(rt.registry),
				Registry:  gatherer,
			})
			if err != nil {
				return err
			}

			rt.logger.Info("NutriBot %s model=%s rag=%t provider=%s", cfg.Environment, cfg.LLM.DefaultModel, cfg.RAG.Enabled, cfg.LLM.Provider)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}
