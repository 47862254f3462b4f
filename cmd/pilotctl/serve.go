package main

import (
	"fmt"
	"time"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		listen  string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /suggest backed by the retrieval resolver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			// The suggest resolver would call this server; always retrieve.
			cfg.Resolver = config.ResolverRetrieval
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if len(origins) > 0 {
				cfg.Server.AllowedOrigins = origins
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			strategy, err := resolver.NewRegistry().Build(ctx, cfg.Resolver, resolver.Deps{Config: cfg, Logger: a.log()})
			if err != nil {
				return fmt.Errorf("could not start retrieval resolver: %w", err)
			}
			defer strategy.Close() //nolint:errcheck

			srv, err := server.New(server.Options{
				Addr:            cfg.Server.Listen,
				AllowedOrigins:  cfg.Server.AllowedOrigins,
				Lookup:          strategy,
				Version:         version,
				Logger:          a.log(),
				ShutdownTimeout: 10 * time.Second,
			})
			if err != nil {
				return err
			}
			a.log().Info("serving suggestions",
				zap.String("listen", cfg.Server.Listen),
				zap.String("index", cfg.Index.Backend),
			)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from server.listen)")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "CORS origin allowed to call the API (repeatable)")
	return cmd
}
