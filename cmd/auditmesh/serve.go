package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/auditmesh/config"
	"github.com/hupe1980/auditmesh/logging"
	"github.com/hupe1980/auditmesh/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the audit API server and worker pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logCfg := logging.DefaultAuditLoggerConfig()
			logCfg.Level = logging.ParseLevel(cfg.LogLevel)
			logger := logging.NewAuditLogger(logCfg).WithComponent("auditmesh")

			mesh, store, err := buildMesh(cmd, cfg, logger)
			if err != nil {
				return err
			}

			if err := mesh.Start(cmd.Context()); err != nil {
				return err
			}
			defer mesh.Stop()

			// Background monitoring runs for the lifetime of the server.
			if _, err := mesh.Watchdog().Process(cmd.Context(), map[string]any{"action": "start"}); err != nil {
				return err
			}

			srv := server.New(mesh.Coordinator(),
				server.WithStore(store),
				server.WithWatchdog(mesh.Watchdog()),
				server.WithLogger(logger),
			)

			color.Green("auditmesh listening on %s", cfg.Server.Addr)
			return srv.Run(cfg.Server.Addr)
		},
	}
}
