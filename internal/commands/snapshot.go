package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hostmon/internal/encoding"
	"hostmon/internal/snapshot"
	"hostmon/internal/ui"
)

// NewSnapshotCmd creates the snapshot command
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one snapshot and exit",
		Long: `Assemble a snapshot exactly as the dashboard would and write it to
stdout. Throughput and CPU figures are deltas, so they read zero unless
more than one sample is taken.

Examples:
  hostmon snapshot                   # JSON, single sample
  hostmon snapshot --samples 2       # Wait one tick for real rates
  hostmon snapshot --format cbor     # Binary CBOR encoding`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			samples, _ := cmd.Flags().GetInt("samples")
			return runSnapshot(cmd, format, samples, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("format", "f", "json", "Output encoding: json or cbor")
	cmd.Flags().IntP("samples", "n", 1, "Samples to take, one tick apart")
	return cmd
}

func runSnapshot(cmd *cobra.Command, formatName string, samples int, out io.Writer) error {
	format, err := encoding.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if samples < 1 {
		return fmt.Errorf("samples must be at least 1, got %d", samples)
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

	sampler := rt.NewSampler(cfg.TickInterval)
	var snap *snapshot.Snapshot
	collect := func() (err error) {
		snap, err = sampler.Collect(ctx, samples)
		return err
	}
	if samples > 1 {
		err = ui.WithSpinner(fmt.Sprintf("Sampling %d ticks", samples), collect)
	} else {
		err = collect()
	}
	if err != nil {
		return err
	}

	data, err := encoding.Marshal(format, snap)
	if err != nil {
		return err
	}
	if format == encoding.FormatJSON {
		data = append(data, '\n')
	}
	_, err = out.Write(data)
	return err
}
