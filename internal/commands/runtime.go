package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hostmon/internal/config"
	"hostmon/internal/metrics"
	"hostmon/internal/platform"
	"hostmon/internal/server"
	"hostmon/internal/snapshot"
	"hostmon/internal/telemetry"
)

// loadConfig reads --config when given, the default search path otherwise
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig()
}

// Runtime is the set of long-lived collaborators every command samples
// through
type Runtime struct {
	Config   *config.Config
	Platform snapshot.Platform
	Static   *snapshot.StaticCache
	Packages *metrics.PackageHistory
	Metrics  *telemetry.Metrics

	NewSource func() snapshot.Source
}

// newRuntime is a variable so tests can substitute fakes
var newRuntime = buildRuntime

func buildRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	p, err := platform.Detect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to select platform: %w", err)
	}

	packages := metrics.NewPackageHistory(cfg.PackageDB, cfg.PackageLimit)
	return &Runtime{
		Config:   cfg,
		Platform: p,
		Static:   snapshot.NewStaticCache(metrics.HostFacts{}, p, cfg.ProviderTimeout),
		Packages: packages,
		Metrics:  telemetry.NewMetrics(),
		NewSource: func() snapshot.Source {
			return metrics.NewProbe(cfg.DiskPath, packages)
		},
	}, nil
}

// Close releases the package database handle
func (r *Runtime) Close() {
	if r.Packages != nil {
		_ = r.Packages.Close()
	}
}

// ServerDeps adapts the runtime for server.New
func (r *Runtime) ServerDeps() server.Deps {
	return server.Deps{
		Config:    r.Config,
		Platform:  r.Platform,
		Static:    r.Static,
		Packages:  r.Packages,
		Metrics:   r.Metrics,
		NewSource: r.NewSource,
	}
}

// NewAssembler builds an assembler over a fresh sampler
func (r *Runtime) NewAssembler() *snapshot.Assembler {
	return snapshot.NewAssembler(r.NewSource(), r.Platform, r.Static, snapshot.Options{
		Timeout:  r.Config.ProviderTimeout,
		TopN:     r.Config.TopProcesses,
		Observer: r.Metrics,
	})
}

// Sampler produces consecutive snapshots from one assembler, carrying the
// counter sample between calls like a stream session does
type Sampler struct {
	assembler *snapshot.Assembler
	interval  time.Duration
	prev      *metrics.CounterSample
	ticks     uint64
}

// NewSampler paces Next at interval after the first call
func (r *Runtime) NewSampler(interval time.Duration) *Sampler {
	return &Sampler{assembler: r.NewAssembler(), interval: interval}
}

// Next waits out the interval (except on the first call) and assembles
func (s *Sampler) Next(ctx context.Context) (*snapshot.Snapshot, error) {
	if s.ticks > 0 && s.interval > 0 {
		t := time.NewTimer(s.interval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	snap, current := s.assembler.Assemble(ctx, s.prev)
	s.prev = current
	s.ticks++
	snap.Tick = s.ticks
	return snap, nil
}

// Collect takes n snapshots and returns the last. Rates and CPU need n > 1.
func (s *Sampler) Collect(ctx context.Context, n int) (*snapshot.Snapshot, error) {
	if n < 1 {
		n = 1
	}
	var snap *snapshot.Snapshot
	for i := 0; i < n; i++ {
		var err error
		if snap, err = s.Next(ctx); err != nil {
			return nil, err
		}
	}
	return snap, nil
}
