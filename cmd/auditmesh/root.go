package main

import (
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/auditmesh"
	"github.com/hupe1980/auditmesh/cache"
	"github.com/hupe1980/auditmesh/config"
	"github.com/hupe1980/auditmesh/logging"
	"github.com/hupe1980/auditmesh/model"
	"github.com/hupe1980/auditmesh/model/anthropic"
	"github.com/hupe1980/auditmesh/model/openai"
	"github.com/hupe1980/auditmesh/storage"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "auditmesh",
		Short:         "Multi-agent compliance audit orchestrator",
		Long:          "auditmesh scans data sources for sensitive data, matches findings against policies and produces audit reports through a pipeline of cooperating agents.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newScanCmd(&configPath))

	return cmd
}

// buildMesh assembles an AuditMesh from the loaded configuration.
func buildMesh(cmd *cobra.Command, cfg *config.Config, logger logging.Logger) (*auditmesh.AuditMesh, *storage.Store, error) {
	store, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open findings database: %w", err)
	}

	var scanCache *cache.Cache
	if cfg.Cache.Enabled {
		ttl, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse cache.ttl %q: %w", cfg.Cache.TTL, err)
		}
		scanCache, err = cache.New(cmd.Context(), cfg.Cache.Addr, cache.WithTTL(ttl))
		if err != nil {
			return nil, nil, fmt.Errorf("connect scan cache: %w", err)
		}
	}

	mesh := auditmesh.New(func(o *auditmesh.Options) {
		o.MaxConcurrentTasks = cfg.Queue.MaxConcurrent
		o.StatePath = cfg.State.Path
		o.ReportDir = cfg.Report.OutputDir
		o.WatchdogInterval = time.Duration(cfg.Watchdog.IntervalSeconds) * time.Second
		o.Store = store
		o.Cache = scanCache
		o.Model = buildModel(cfg)
		o.Logger = logger
	})
	return mesh, store, nil
}

func buildModel(cfg *config.Config) model.Model {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
		})
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
		})
	case "mock":
		return model.NewMockModel(cfg.Model.Name)
	default:
		return nil
	}
}
