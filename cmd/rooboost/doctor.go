package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/internal/appconfig"
	"pkt.systems/rooboost/internal/manifest"
	"pkt.systems/rooboost/internal/taskloader"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, task sources and plugin manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)
			if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
				logger.Info("doctor config missing; using defaults", "hint", "rooboost config init")
			}

			loader, err := taskloader.New(taskloader.Config{BaseDir: cfg.Sources.BaseDir})
			if err != nil {
				return err
			}
			logger.Info("doctor storage", "base_dir", loader.Base())

			var problems []error
			for _, source := range cfg.SourceKeys() {
				tasks, err := loader.Scan(cmd.Context(), source)
				if err != nil {
					logger.Warn("doctor source unavailable", "source", source, "err", err)
					if string(source) == cfg.Sources.Default {
						problems = append(problems, fmt.Errorf("default source %s: %w", source, err))
					}
					continue
				}
				logger.Info("doctor source ok", "source", source, "tasks", len(tasks))
			}

			for _, path := range cfg.Plugins.External {
				m, err := manifest.Load(path)
				if err != nil {
					logger.Warn("doctor manifest invalid", "manifest", path, "err", err)
					problems = append(problems, err)
					continue
				}
				logger.Info("doctor manifest ok", "manifest", path, "plugin", m.Name, "version", m.Version)
			}

			if err := errors.Join(problems...); err != nil {
				return err
			}
			logger.Info("doctor ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}
