package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hostmon/internal/metrics"
	"hostmon/internal/ui"
)

// NewPackagesCmd creates the packages command
func NewPackagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Summarize the DNF package history",
		Long: `Read the DNF transaction database and list each package's latest
operation. Bounds accept a duration back from now, a date or a unix time.

Examples:
  hostmon packages                    # Whole history
  hostmon packages --since 720h       # Last 30 days
  hostmon packages --since 2024-01-01 --until 2024-06-30
  hostmon packages --json             # Same data the dashboard API returns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			sinceFlag, _ := cmd.Flags().GetString("since")
			untilFlag, _ := cmd.Flags().GetString("until")
			asJSON, _ := cmd.Flags().GetBool("json")

			start, err := parseBound(sinceFlag, now)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			end, err := parseBound(untilFlag, now)
			if err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}
			if start > 0 && end > 0 && start > end {
				return fmt.Errorf("--since is after --until")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			history := metrics.NewPackageHistory(cfg.PackageDB, cfg.PackageLimit)
			defer history.Close()

			ctx := contextOf(cmd)
			events, err := history.Events(ctx, start, end)
			if err != nil {
				return err
			}
			timelines := metrics.GroupPackageEvents(events)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"packages":     timelines,
					"total_events": len(events),
				})
			}

			summary := ui.NewSection("Database").
				KV("Path", history.Path()).
				KV("Events", humanize.Comma(int64(len(events)))).
				KV("Packages", humanize.Comma(int64(len(timelines))))
			if r, err := history.TimeRange(ctx); err == nil {
				summary.KV("Recorded", fmt.Sprintf("%s to %s",
					humanize.Time(time.Unix(r.Earliest, 0)), humanize.Time(time.Unix(r.Latest, 0))))
			}
			fmt.Fprint(out, summary.String())
			fmt.Fprint(out, ui.PackageSection(timelines).String())
			return nil
		},
	}

	cmd.Flags().String("since", "", "Lower bound: duration (720h), date (2006-01-02) or unix time")
	cmd.Flags().String("until", "", "Upper bound, same forms as --since")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

// parseBound reads a history bound. Empty means unbounded (0).
func parseBound(s string, now time.Time) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d).Unix(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t.Unix(), nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
		return v, nil
	}
	return 0, fmt.Errorf("%q is not a duration, date or unix time", s)
}
