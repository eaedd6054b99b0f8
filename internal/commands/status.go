package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hostmon/internal/process"
	"hostmon/internal/server"
	"hostmon/internal/snapshot"
	"hostmon/internal/ui"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a sectioned summary of the host",
		Long: `Take two samples one tick apart and print every dashboard section:
  • System facts (hostname, OS, kernel, CPU, uptime)
  • Resource utilization, network throughput and services
  • Top processes and, on Exchange servers, the mail block
  • Whether a dashboard is already serving on this host

Examples:
  hostmon status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			var snap *snapshot.Snapshot
			err = ui.WithSpinner("Sampling host", func() (err error) {
				snap, err = rt.NewSampler(cfg.TickInterval).Collect(ctx, 2)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.RenderBanner(server.PageTitle(rt.Platform)))
			fmt.Fprint(out, ui.RenderSnapshot(snap))
			fmt.Fprint(out, dashboardSection(cfg.ListenAddr).String())
			return nil
		},
	}
}

func dashboardSection(addr string) *ui.Section {
	s := ui.NewSection("Dashboard")
	running, pid, err := process.Check()
	switch {
	case err != nil:
		s.Status("warning", fmt.Sprintf("Could not read PID file: %v", err))
	case running:
		s.Status("success", fmt.Sprintf("Serving (PID %d) on http://%s/", pid, addr))
	default:
		s.Status("info", "Not running. Start it with 'hostmon serve'")
	}
	return s.KV("Checked", time.Now().Format(time.Kitchen))
}
