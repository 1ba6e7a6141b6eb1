package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/rooboost"
	"pkt.systems/rooboost/internal/appconfig"
)

func newBrowseCmd() *cobra.Command {
	var cfgPath string
	var plugins []string
	var theme string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse tasks in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if theme != "" {
				cfg.TUI.Theme = theme
			}
			serverCfg, err := serverConfigFrom(cfg, plugins)
			if err != nil {
				return err
			}

			// The terminal owns the screen, so logs go to a file under the state dir.
			logOut, closeLog, err := browseLogWriter(cfg.StateDir)
			if err != nil {
				return err
			}
			defer closeLog()
			logger := pslog.NewWithOptions(logOut, pslog.Options{
				Mode:     pslog.ModeStructured,
				NoColor:  true,
				MinLevel: pslog.InfoLevel,
			})
			log.SetOutput(pslog.LogLogger(logger).Writer())
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			server, err := rooboost.New(serverCfg, rooboost.ServerDeps{Logger: logger}, rooboost.WithTerminal())
			if err != nil {
				return err
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			return server.Browse(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringArrayVar(&plugins, "plugin", nil, "plugin manifest to load (repeatable)")
	cmd.Flags().StringVar(&theme, "theme", "", "color theme (outrun or gruvbox)")
	return cmd
}

func browseLogWriter(stateDir string) (io.Writer, func(), error) {
	if stateDir == "" {
		return io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(stateDir, "browse.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
