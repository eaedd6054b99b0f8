package snapshot

import (
	"context"
	"sync"
	"time"

	constants "hostmon/config"
	"hostmon/internal/logger"
	"hostmon/internal/metrics"
)

// StaticCache computes StaticFacts once per process and shares them
// read-only across sessions
type StaticCache struct {
	source   FactSource
	platform Platform
	timeout  time.Duration

	mu    sync.Mutex
	facts StaticFacts
	ready bool
}

// NewStaticCache creates an empty cache. Nothing is read until Ensure.
func NewStaticCache(source FactSource, platform Platform, timeout time.Duration) *StaticCache {
	return &StaticCache{source: source, platform: platform, timeout: timeout}
}

// Ensure returns the cached facts, computing them on the first call.
// Concurrent first callers wait for a single computation. The facts outlive
// the caller, so the computation ignores ctx cancellation; each fact is
// still bounded by the provider timeout.
func (c *StaticCache) Ensure(ctx context.Context) StaticFacts {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		c.facts = c.compute(context.WithoutCancel(ctx))
		c.ready = true
	}
	return c.facts
}

// compute reads every fact concurrently; a failed fact keeps its sentinel
func (c *StaticCache) compute(ctx context.Context) StaticFacts {
	facts := DefaultFacts()
	if c.platform != nil {
		facts.Platform = c.platform.Name()
		facts.IsExchangeServer = c.platform.Extension() != nil
	}

	na := constants.NOT_AVAILABLE
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []string
	)
	str := func(name string, fn func(context.Context) (string, error), dst *string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := metrics.Run(ctx, name, c.timeout, na, fn)
			mu.Lock()
			defer mu.Unlock()
			*dst = res.Value
			if !res.OK() {
				errs = append(errs, res.Err.Error())
			}
		}()
	}

	str("cpu_info", c.source.CPUModel, &facts.CPUInfo)
	str("cpu_frequency", c.source.CPUFrequency, &facts.CPUFrequency)
	str("kernel_version", c.source.KernelVersion, &facts.KernelVersion)
	str("os_release", c.source.OSRelease, &facts.OSRelease)
	str("hostname", c.source.Hostname, &facts.Hostname)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res := metrics.Run(ctx, "logged_in_users", c.timeout, 0, c.source.LoggedInUsers)
		mu.Lock()
		defer mu.Unlock()
		facts.LoggedInUsers = res.Value
		if !res.OK() {
			errs = append(errs, res.Err.Error())
		}
	}()

	wg.Wait()

	for _, e := range errs {
		logger.Warning("Static fact unavailable: %s", e)
	}
	return facts
}
