package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"hostmon/internal/service"
	"hostmon/internal/ui"
)

// NewServiceCmd creates the service command with its subcommands
func NewServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the hostmon system service",
		Long: `Run the dashboard as a system service (systemd on Linux, launchd on
macOS, the Service Control Manager on Windows). The service runs
'hostmon serve --no-open'.

Examples:
  hostmon service install   # Register the service
  hostmon service start     # Start it
  hostmon service status    # Ask the service manager
  hostmon service stop      # Stop it
  hostmon service remove    # Stop and unregister`,
	}

	cmd.AddCommand(
		newServiceActionCmd("install", "Register hostmon as a system service", "Installing Service",
			func(s *service.Service) (string, error) { return s.Install() },
			"Run 'hostmon service start' to start the dashboard"),
		newServiceActionCmd("remove", "Stop and unregister the service", "Removing Service",
			func(s *service.Service) (string, error) {
				_, _ = s.Stop()
				return s.Remove()
			}, ""),
		newServiceActionCmd("start", "Start the service", "Starting Service",
			func(s *service.Service) (string, error) { return s.Start() },
			"Try 'hostmon service install' first if the service is unknown"),
		newServiceActionCmd("stop", "Stop the service", "Stopping Service",
			func(s *service.Service) (string, error) { return s.Stop() }, ""),
		newServiceActionCmd("restart", "Restart the service", "Restarting Service",
			func(s *service.Service) (string, error) {
				_, _ = s.Stop()
				return s.Start()
			}, ""),
		newServiceActionCmd("status", "Show the service manager's status", "Service Status",
			func(s *service.Service) (string, error) { return s.Status() }, ""),
	)
	return cmd
}

func newServiceActionCmd(use, short, title string, action func(*service.Service) (string, error), hint string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			section := ui.NewSection(title)
			defer func() { fmt.Fprint(cmd.OutOrStdout(), section.String()) }()

			svc, err := service.New()
			if err != nil {
				section.Status("error", err.Error())
				return err
			}

			status, err := action(svc)
			if err != nil {
				section.Status("error", fmt.Sprintf("Failed to %s: %v", use, err))
				if hint != "" {
					section.Status("info", hint)
				}
				return err
			}
			section.Status("success", status)
			return nil
		},
	}
}
