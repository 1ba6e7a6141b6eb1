package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/internal/appconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the rooboost config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var cfgPath string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appconfig.WriteDefault(cfgPath, overwrite)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config wrote", "path", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing config")
	return cmd
}
