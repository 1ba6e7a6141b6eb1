package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pkt.systems/rooboost/internal/appconfig"
	"pkt.systems/rooboost/internal/taskloader"
	"pkt.systems/rooboost/schema"
)

const tasksDateLayout = "2006-01-02 15:04"

func newTasksCmd() *cobra.Command {
	var cfgPath string
	var source string
	var dir string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks of a source, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			loader, err := taskloader.New(taskloader.Config{BaseDir: cfg.Sources.BaseDir})
			if err != nil {
				return err
			}
			var tasks []schema.TaskRecord
			if dir != "" {
				tasks, err = loader.ScanDir(cmd.Context(), dir)
			} else {
				if source == "" {
					source = cfg.Sources.Default
				}
				tasks, err = loader.Scan(cmd.Context(), schema.SourceKey(source))
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			if len(tasks) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTasks(tasks))
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&source, "source", "", "source key (defaults to sources.default)")
	cmd.Flags().StringVar(&dir, "dir", "", "scan this tasks directory instead of a source")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func renderTasks(tasks []schema.TaskRecord) string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			task.ShortID(),
			task.ModifiedAt.Local().Format(tasksDateLayout),
			task.ProjectName,
			task.SummaryMessage,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "MODIFIED", "PROJECT", "SUMMARY").
		Rows(rows...).
		String()
}
