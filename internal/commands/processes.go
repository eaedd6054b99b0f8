package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"hostmon/internal/metrics"
	"hostmon/internal/ui"
)

// NewProcessesCmd creates the processes command
func NewProcessesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processes",
		Short: "Show the busiest processes",
		Long: `Enumerate processes twice, one tick apart, and print the top entries
by CPU (the dashboard's ordering) or by memory.

Examples:
  hostmon processes              # Top 10 by CPU
  hostmon processes -n 20        # Top 20
  hostmon processes --sort mem   # Order by memory share`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			by, _ := cmd.Flags().GetString("sort")
			if by != "cpu" && by != "mem" {
				return fmt.Errorf("sort must be cpu or mem, got %q", by)
			}

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

			// The first pass only records CPU baselines
			source := rt.NewSource()
			var procs []metrics.ProcessInfo
			err = ui.WithSpinner("Sampling processes", func() error {
				if _, err := source.Processes(ctx); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(cfg.TickInterval):
				}
				list, err := source.Processes(ctx)
				procs = list
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), ui.ProcessSection(rankProcesses(procs, by, limit)).String())
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "Number of processes to show")
	cmd.Flags().String("sort", "cpu", "Order by cpu or mem")
	return cmd
}

// rankProcesses orders by CPU via TopProcesses, or by memory share
func rankProcesses(procs []metrics.ProcessInfo, by string, limit int) []metrics.ProcessInfo {
	if by != "mem" {
		return metrics.TopProcesses(procs, limit)
	}
	sorted := make([]metrics.ProcessInfo, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MemoryPercent > sorted[j].MemoryPercent
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
