package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hostmon/internal/metrics"
)

var errBoom = errors.New("boom")

// fakeSource returns canned values; any provider named in fail returns errBoom
type fakeSource struct {
	fail     map[string]bool
	counters metrics.CounterSample
	procs    []metrics.ProcessInfo
	conns    []metrics.Connection
	panicOn  string
	block    string
}

func (f *fakeSource) check(ctx context.Context, name string) error {
	if f.panicOn == name {
		panic("provider exploded")
	}
	if f.block == name {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail[name] {
		return errBoom
	}
	return nil
}

func (f *fakeSource) CPU(ctx context.Context) (metrics.CPUUsage, error) {
	if err := f.check(ctx, "cpu"); err != nil {
		return metrics.CPUUsage{}, err
	}
	return metrics.CPUUsage{Total: 42.5, PerCore: []float64{40, 45}}, nil
}

func (f *fakeSource) Memory(ctx context.Context) (metrics.MemoryStats, error) {
	if err := f.check(ctx, "memory"); err != nil {
		return metrics.MemoryStats{}, err
	}
	gb := uint64(1024 * 1024 * 1024)
	return metrics.MemoryStats{UsedPercent: 50, Total: 8 * gb, Available: 4 * gb, Used: 4 * gb}, nil
}

func (f *fakeSource) Swap(ctx context.Context) (float64, error) {
	if err := f.check(ctx, "swap"); err != nil {
		return 0, err
	}
	return 12.5, nil
}

func (f *fakeSource) Disk(ctx context.Context) (float64, error) {
	if err := f.check(ctx, "disk"); err != nil {
		return 0, err
	}
	return 70, nil
}

func (f *fakeSource) DiskIO(ctx context.Context) (metrics.DiskIO, error) {
	if err := f.check(ctx, "disk_io"); err != nil {
		return metrics.DiskIO{}, err
	}
	return metrics.DiskIO{ReadBytes: 2048, WriteBytes: 1024}, nil
}

func (f *fakeSource) NetCounters(ctx context.Context) (metrics.CounterSample, error) {
	if err := f.check(ctx, "net_io"); err != nil {
		return metrics.CounterSample{}, err
	}
	return f.counters, nil
}

func (f *fakeSource) BootTime(ctx context.Context) (time.Time, error) {
	if err := f.check(ctx, "boot_time"); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(-90 * time.Minute), nil
}

func (f *fakeSource) Load(ctx context.Context) (metrics.LoadAvg, error) {
	if err := f.check(ctx, "load_avg"); err != nil {
		return metrics.LoadAvg{}, err
	}
	return metrics.LoadAvg{Load1: 0.5, Load5: 0.25, Load15: 0.1}, nil
}

func (f *fakeSource) Processes(ctx context.Context) ([]metrics.ProcessInfo, error) {
	if err := f.check(ctx, "processes"); err != nil {
		return nil, err
	}
	return f.procs, nil
}

func (f *fakeSource) Connections(ctx context.Context) ([]metrics.Connection, error) {
	if err := f.check(ctx, "connections"); err != nil {
		return nil, err
	}
	return f.conns, nil
}

func (f *fakeSource) Packages(ctx context.Context) ([]metrics.PackageEvent, error) {
	if err := f.check(ctx, "packages"); err != nil {
		return nil, err
	}
	return []metrics.PackageEvent{{Name: "bash", Operation: "Install", Timestamp: 1700000000}}, nil
}

// countingFacts counts how many times each fact is read. With a delay
// each read waits that long or until ctx ends.
type countingFacts struct {
	calls atomic.Int32
	fail  bool
	delay time.Duration
}

func (c *countingFacts) wait(ctx context.Context) error {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
	}
	if c.fail {
		return errBoom
	}
	return nil
}

func (c *countingFacts) value(ctx context.Context, s string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return s, nil
}

func (c *countingFacts) CPUModel(ctx context.Context) (string, error) {
	return c.value(ctx, "Test CPU")
}
func (c *countingFacts) CPUFrequency(ctx context.Context) (string, error) {
	return c.value(ctx, "2400.00 MHz")
}
func (c *countingFacts) KernelVersion(ctx context.Context) (string, error) {
	return c.value(ctx, "6.1.0")
}
func (c *countingFacts) OSRelease(ctx context.Context) (string, error) { return c.value(ctx, "linux") }
func (c *countingFacts) Hostname(ctx context.Context) (string, error)  { return c.value(ctx, "box") }
func (c *countingFacts) LoggedInUsers(ctx context.Context) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return 2, nil
}

// fakePlatform returns a fixed service map and an optional extension
type fakePlatform struct {
	name     string
	services map[string]bool
	fail     bool
	ext      ExtensionSource
}

func (p *fakePlatform) Name() string { return p.name }

func (p *fakePlatform) Services(context.Context) (map[string]bool, error) {
	if p.fail {
		return nil, errBoom
	}
	return p.services, nil
}

func (p *fakePlatform) Extension() ExtensionSource { return p.ext }

type fakeExtension struct {
	fail bool
}

func (e *fakeExtension) ServiceStatus(context.Context) (map[string]bool, error) {
	if e.fail {
		return nil, errBoom
	}
	return map[string]bool{"Microsoft Exchange Transport": true}, nil
}

func (e *fakeExtension) TransportLogs(context.Context) (TransportLogs, error) {
	if e.fail {
		return TransportLogs{}, errBoom
	}
	return TransportLogs{SendLog: []string{"send"}, ReceiveLog: []string{"recv"}}, nil
}

func (e *fakeExtension) EventLogs(context.Context) ([]EventRecord, error) {
	if e.fail {
		return nil, errBoom
	}
	return []EventRecord{{SourceName: "MSExchangeIS", EventID: 1001, EventType: 1}}, nil
}

func (e *fakeExtension) SecurityLogins(context.Context) ([]LoginRecord, error) {
	if e.fail {
		return nil, errBoom
	}
	return []LoginRecord{{SourceName: "Security", EventID: 4624}}, nil
}

// recordingObserver captures observer calls
type recordingObserver struct {
	mu       sync.Mutex
	failures map[string]int
	ticks    int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failures: map[string]int{}}
}

func (o *recordingObserver) ObserveProvider(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures[name]++
	}
}

func (o *recordingObserver) ObserveTick(time.Duration, *Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
}

// brokenPlatform panics whenever its extension is inspected
type brokenPlatform struct{ fakePlatform }

func (p *brokenPlatform) Extension() ExtensionSource { panic("strategy broke") }

// panickingObserver panics on provider reports, tick reports, or both
type panickingObserver struct {
	onProvider bool
	onTick     bool
}

func (o panickingObserver) ObserveProvider(string, error) {
	if o.onProvider {
		panic("observer broke")
	}
}

func (o panickingObserver) ObserveTick(time.Duration, *Snapshot) {
	if o.onTick {
		panic("observer broke")
	}
}
