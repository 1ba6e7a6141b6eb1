package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pkt.systems/rooboost/internal/appconfig"
	"pkt.systems/rooboost/internal/manifest"
	"pkt.systems/rooboost/internal/persist"
	"pkt.systems/rooboost/plugins/browsetasks"
	"pkt.systems/rooboost/plugins/helloworld"
	"pkt.systems/rooboost/schema"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugins and plugin manifests",
	}
	cmd.AddCommand(newPluginsValidateCmd())
	cmd.AddCommand(newPluginsListCmd())
	return cmd
}

func newPluginsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate plugin manifests without loading them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				m, err := manifest.Load(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s %s, %d commands)\n", path, m.Name, m.Version, len(m.Commands))
			}
			return errors.Join(errs...)
		},
	}
}

type pluginRow struct {
	name    schema.PluginName
	version string
	source  string
	status  string
}

func newPluginsListCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in, configured and previously loaded plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			rows, err := listPlugins(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderPlugins(rows))
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func listPlugins(cfg appconfig.Config) ([]pluginRow, error) {
	disabled := func(name schema.PluginName) bool {
		for _, d := range cfg.Plugins.Disabled {
			if strings.EqualFold(strings.TrimSpace(d), string(name)) {
				return true
			}
		}
		return false
	}
	status := func(name schema.PluginName) string {
		if disabled(name) {
			return "disabled"
		}
		return "enabled"
	}

	rows := []pluginRow{
		{name: browsetasks.Name, version: browsetasks.Version, source: "builtin", status: status(browsetasks.Name)},
		{name: helloworld.Name, version: helloworld.Version, source: "builtin", status: status(helloworld.Name)},
	}
	paths := append([]string{}, cfg.Plugins.External...)
	if strings.TrimSpace(cfg.StateDir) != "" {
		store, err := persist.NewStore(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		snapshot, _, err := store.LoadPlugins()
		if err != nil {
			return nil, err
		}
		paths = append(paths, snapshot.Manifests...)
	}
	seen := make(map[string]bool)
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		m, err := manifest.Load(path)
		if err != nil {
			rows = append(rows, pluginRow{source: path, status: "invalid: " + err.Error()})
			continue
		}
		rows = append(rows, pluginRow{name: m.Name, version: m.Version, source: path, status: status(m.Name)})
	}
	return rows, nil
}

func renderPlugins(rows []pluginRow) string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{string(row.name), row.version, row.source, row.status})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "VERSION", "SOURCE", "STATUS").
		Rows(out...).
		String()
}
