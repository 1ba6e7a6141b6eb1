package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/rooboost"
	"pkt.systems/rooboost/httpapi"
	"pkt.systems/rooboost/internal/appconfig"
	"pkt.systems/rooboost/internal/host"
	"pkt.systems/rooboost/schema"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var plugins []string
	var disableAuditTrails bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task browser and command palette over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if disableAuditTrails {
				cfg.Logging.DisableAuditTrails = true
			}
			serverCfg, err := serverConfigFrom(cfg, plugins)
			if err != nil {
				return err
			}
			server, err := rooboost.New(serverCfg, rooboost.ServerDeps{Logger: logger}, rooboost.WithHTTP())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringArrayVar(&plugins, "plugin", nil, "plugin manifest to load (repeatable)")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for palette commands")
	return cmd
}

// serverConfigFrom maps the file configuration onto the compositor.
// Extra manifests are appended after the configured ones.
func serverConfigFrom(cfg appconfig.Config, extraPlugins []string) (rooboost.ServerConfig, error) {
	manifests := append([]string{}, cfg.Plugins.External...)
	for _, path := range extraPlugins {
		abs, err := filepath.Abs(path)
		if err != nil {
			return rooboost.ServerConfig{}, err
		}
		manifests = append(manifests, abs)
	}
	sources := cfg.SourceKeys()
	return rooboost.ServerConfig{
		HTTP:          toHTTPConfig(cfg.HTTP, sources),
		Host:          host.Config{OpenCommand: cfg.Host.OpenCommand, DiagnosticsMaxLines: cfg.Host.DiagnosticsMaxLines},
		Sources:       sources,
		DefaultSource: schema.SourceKey(cfg.Sources.Default),
		BaseDir:       cfg.Sources.BaseDir,
		StateDir:      cfg.StateDir,
		Manifests:     manifests,
		Disabled:      cfg.Plugins.Disabled,
		Theme:         cfg.TUI.Theme,

		DisableAuditLogging: cfg.Logging.DisableAuditTrails,
	}, nil
}

func toHTTPConfig(cfg appconfig.HTTPConfig, sources []schema.SourceKey) httpapi.Config {
	return httpapi.Config{
		Addr:        cfg.Addr,
		BaseURL:     cfg.BaseURL,
		BasePath:    cfg.BasePath,
		HistorySize: cfg.HistorySize,
		Sources:     sources,
	}
}
