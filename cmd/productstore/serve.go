package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ProductStore/internal/catalog"
	"ProductStore/internal/config"
	"ProductStore/pkg/kit"
)

const service = "productstore"

func newServeCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the product store HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServer(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a config file (yaml, toml or json)")
	cmd.Flags().String("addr", "", "listen address (default \":8000\")")
	cmd.Flags().String("store", "", "store kind: file or memory (default \"file\")")
	cmd.Flags().String("store-path", "", "path of the products JSON file (default \"products.json\")")
	cmd.Flags().String("log-level", "", "log level (default \"info\")")

	return cmd
}

func runServer(cmd *cobra.Command, cfg *config.Config) error {
	log, err := kit.NewLogger(service, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &catalog.Server{
		Store: newStore(cfg, log),
		Log:   log,
	}

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		WriteRateLimit: cfg.HTTP.WriteRateLimit,
	})

	err = kit.RunHTTPServer(cmd.Context(), cfg.HTTP.Addr, h, kit.ServerOptions{
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
	}, log)
	if err != nil {
		log.Error("http server stopped", zap.Error(err))
		return err
	}
	log.Info("http server stopped")
	return nil
}

func newStore(cfg *config.Config, log *zap.Logger) catalog.Store {
	if cfg.Store.Kind == config.StoreKindMemory {
		log.Info("using in-memory store")
		return catalog.NewMemStore()
	}
	log.Info("using file store", zap.String("path", cfg.Store.Path))
	return catalog.NewFileStore(cfg.Store.Path)
}
