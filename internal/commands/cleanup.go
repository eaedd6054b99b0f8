package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"hostmon/internal/process"
	"hostmon/internal/ui"
)

// NewCleanupCmd creates the cleanup command
func NewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove a stale PID file",
		Long: `Remove the PID file left by a dashboard that is no longer running,
or whose PID now belongs to another program. A live dashboard is left alone.

Examples:
  hostmon cleanup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			section := ui.NewSection("Cleanup")
			defer func() { fmt.Fprint(cmd.OutOrStdout(), section.String()) }()

			section.KV("PID file", process.PIDFilePath())
			if err := process.CleanupStale(); err != nil {
				section.Status("warning", err.Error())
				return err
			}
			section.Status("success", "No stale lock remains")
			return nil
		},
	}
}
