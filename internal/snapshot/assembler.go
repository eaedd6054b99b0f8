package snapshot

import (
	"context"
	"runtime"
	"sync"
	"time"

	constants "hostmon/config"
	"hostmon/internal/logger"
	"hostmon/internal/metrics"
)

// serviceGrace lets a service table's own batch deadline fire before the
// outer provider timeout, so partial results are kept
const serviceGrace = time.Second

// Options tune an Assembler
type Options struct {
	Timeout  time.Duration // per-provider bound
	TopN     int           // process list length
	Now      func() time.Time
	Observer Observer
}

// Assembler builds one Snapshot per call. It holds no counter state; the
// caller passes the previous CounterSample in and keeps the returned one.
type Assembler struct {
	source   Source
	platform Platform
	static   *StaticCache
	opts     Options
	health   *providerHealth
}

// NewAssembler wires providers, platform strategy and static facts
func NewAssembler(source Source, platform Platform, static *StaticCache, opts Options) *Assembler {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(constants.DEFAULT_PROVIDER_TIMEOUT_MS) * time.Millisecond
	}
	if opts.TopN <= 0 {
		opts.TopN = constants.DEFAULT_TOP_PROCESSES
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Assembler{
		source:   source,
		platform: platform,
		static:   static,
		opts:     opts,
		health:   newProviderHealth(),
	}
}

// gathered holds one tick's provider results before derivation
type gathered struct {
	cpu      metrics.Result[metrics.CPUUsage]
	memory   metrics.Result[metrics.MemoryStats]
	swap     metrics.Result[float64]
	disk     metrics.Result[float64]
	diskIO   metrics.Result[metrics.DiskIO]
	net      metrics.Result[metrics.CounterSample]
	boot     metrics.Result[time.Time]
	load     metrics.Result[metrics.LoadAvg]
	procs    metrics.Result[[]metrics.ProcessInfo]
	conns    metrics.Result[[]metrics.Connection]
	packages metrics.Result[[]metrics.PackageEvent]
	services metrics.Result[map[string]bool]

	ext *gatheredExtension
}

type gatheredExtension struct {
	services metrics.Result[map[string]bool]
	logs     metrics.Result[TransportLogs]
	events   metrics.Result[[]EventRecord]
	logins   metrics.Result[[]LoginRecord]
}

// Assemble runs every provider concurrently, derives the snapshot and
// returns it with the counters to pass into the next call. It never panics
// and never returns a nil snapshot; whatever could not be computed holds
// its documented default.
func (a *Assembler) Assemble(ctx context.Context, previous *metrics.CounterSample) (snap *Snapshot, current *metrics.CounterSample) {
	start := a.opts.Now()
	facts := DefaultFacts()
	extended := false

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error("Snapshot assembly failed: %v\n%s", r, string(buf[:n]))
			snap = Defaults(facts, extended, a.opts.Now())
			current = nil
		}
		a.observeTick(a.opts.Now().Sub(start), snap)
	}()

	if a.static != nil {
		facts = a.static.Ensure(ctx)
	}
	extended = a.platform != nil && a.platform.Extension() != nil

	g := a.gather(ctx)
	a.report(g)

	snap = a.derive(g, previous, facts, start)
	if g.net.OK() {
		c := g.net.Value
		current = &c
	}
	return snap, current
}

// observeTick reports the tick; an observer failure never reaches the caller
func (a *Assembler) observeTick(elapsed time.Duration, snap *Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Tick observer failed: %v", r)
		}
	}()
	a.opts.Observer.ObserveTick(elapsed, snap)
}

// gather invokes all providers concurrently and waits for the slowest
// bounded one
func (a *Assembler) gather(ctx context.Context) *gathered {
	g := &gathered{}
	t := a.opts.Timeout
	src := a.source

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { g.cpu = metrics.Run(ctx, "cpu", t, metrics.CPUUsage{PerCore: []float64{}}, src.CPU) })
	spawn(func() { g.memory = metrics.Run(ctx, "memory", t, metrics.MemoryStats{}, src.Memory) })
	spawn(func() { g.swap = metrics.Run(ctx, "swap", t, 0.0, src.Swap) })
	spawn(func() { g.disk = metrics.Run(ctx, "disk", t, 0.0, src.Disk) })
	spawn(func() { g.diskIO = metrics.Run(ctx, "disk_io", t, metrics.DiskIO{}, src.DiskIO) })
	spawn(func() { g.net = metrics.Run(ctx, "net_io", t, metrics.CounterSample{}, src.NetCounters) })
	spawn(func() { g.boot = metrics.Run(ctx, "boot_time", t, time.Time{}, src.BootTime) })
	spawn(func() { g.load = metrics.Run(ctx, "load_avg", t, metrics.LoadAvg{}, src.Load) })
	spawn(func() { g.procs = metrics.Run(ctx, "processes", t, []metrics.ProcessInfo{}, src.Processes) })
	spawn(func() { g.conns = metrics.Run(ctx, "connections", t, []metrics.Connection{}, src.Connections) })
	spawn(func() { g.packages = metrics.Run(ctx, "packages", t, []metrics.PackageEvent{}, src.Packages) })

	if a.platform != nil {
		spawn(func() {
			g.services = metrics.Run(ctx, "services", t+serviceGrace, map[string]bool{}, a.platform.Services)
		})
		if ext := a.platform.Extension(); ext != nil {
			g.ext = &gatheredExtension{}
			spawn(func() {
				g.ext.services = metrics.Run(ctx, "exchange_services", t+serviceGrace, map[string]bool{}, ext.ServiceStatus)
			})
			spawn(func() {
				g.ext.logs = metrics.Run(ctx, "exchange_logs", t,
					TransportLogs{SendLog: []string{}, ReceiveLog: []string{}}, ext.TransportLogs)
			})
			spawn(func() { g.ext.events = metrics.Run(ctx, "event_logs", t, []EventRecord{}, ext.EventLogs) })
			spawn(func() { g.ext.logins = metrics.Run(ctx, "security_logins", t, []LoginRecord{}, ext.SecurityLogins) })
		}
	} else {
		g.services = metrics.Result[map[string]bool]{Name: "services", Value: map[string]bool{}}
	}

	wg.Wait()
	return g
}

// report forwards each outcome to the observer and logs state changes
func (a *Assembler) report(g *gathered) {
	obs := a.opts.Observer
	check := func(name string, err error) {
		obs.ObserveProvider(name, err)
		a.health.record(name, err)
	}

	check(g.cpu.Name, g.cpu.Err)
	check(g.memory.Name, g.memory.Err)
	check(g.swap.Name, g.swap.Err)
	check(g.disk.Name, g.disk.Err)
	check(g.diskIO.Name, g.diskIO.Err)
	check(g.net.Name, g.net.Err)
	check(g.boot.Name, g.boot.Err)
	check(g.load.Name, g.load.Err)
	check(g.procs.Name, g.procs.Err)
	check(g.conns.Name, g.conns.Err)
	check(g.packages.Name, g.packages.Err)
	check(g.services.Name, g.services.Err)
	if g.ext != nil {
		check(g.ext.services.Name, g.ext.services.Err)
		check(g.ext.logs.Name, g.ext.logs.Err)
		check(g.ext.events.Name, g.ext.events.Err)
		check(g.ext.logins.Name, g.ext.logins.Err)
	}
}

// derive turns provider results into the wire snapshot
func (a *Assembler) derive(g *gathered, previous *metrics.CounterSample, facts StaticFacts, now time.Time) *Snapshot {
	snap := Defaults(facts, g.ext != nil, now)

	snap.CPUUtilization = g.cpu.Value.Total
	if g.cpu.Value.PerCore != nil {
		snap.PerCPUUtilization = g.cpu.Value.PerCore
	}

	snap.MemoryUtilization = g.memory.Value.UsedPercent
	snap.MemoryTotalGB = metrics.ToGB(g.memory.Value.Total)
	snap.MemoryAvailableGB = metrics.ToGB(g.memory.Value.Available)
	snap.MemoryUsedGB = metrics.ToGB(g.memory.Value.Used)
	snap.SwapUtilization = g.swap.Value
	snap.DiskUtilization = g.disk.Value

	if g.net.OK() {
		rates := metrics.Rate(previous, g.net.Value)
		kb := rates.KB()
		snap.NetworkUtilization = NetworkUtilization{Upload: kb.Upload, Download: kb.Download}
		snap.NetworkInfo = metrics.FormatNetworkInfo(rates)
		c := g.net.Value
		snap.CurrentNetIO = &c
	}

	if g.boot.OK() {
		snap.UptimeOutput = metrics.FormatUptime(g.boot.Value, now)
	}

	if g.diskIO.OK() {
		snap.DiskRead = metrics.FormatBytes(float64(g.diskIO.Value.ReadBytes))
		snap.DiskWrite = metrics.FormatBytes(float64(g.diskIO.Value.WriteBytes))
	}

	if g.load.OK() {
		snap.LoadAvg = metrics.FormatLoad(g.load.Value)
	}

	snap.ProcessList = metrics.TopProcesses(nonNil(g.procs.Value), a.opts.TopN)

	established := metrics.Established(g.conns.Value)
	snap.NetworkConnectionsList = established
	snap.NetworkConnections = metrics.FormatConnections(established)

	snap.PackageHistory = nonNil(g.packages.Value)
	if g.services.Value != nil {
		snap.ServiceStatus = g.services.Value
	}

	if g.ext != nil {
		if g.ext.services.Value != nil {
			snap.ExchangeServicesStatus = g.ext.services.Value
		}
		logs := g.ext.logs.Value
		snap.ExchangeLogs = TransportLogs{SendLog: nonNil(logs.SendLog), ReceiveLog: nonNil(logs.ReceiveLog)}
		snap.EventLogs = nonNil(g.ext.events.Value)
		snap.SecurityLogins = nonNil(g.ext.logins.Value)
	}

	return snap
}

// nonNil turns a nil slice into an empty one so it encodes as []
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// providerHealth remembers the last outcome per provider so repeated
// failures are logged once
type providerHealth struct {
	mu     sync.Mutex
	failed map[string]bool
}

func newProviderHealth() *providerHealth {
	return &providerHealth{failed: make(map[string]bool)}
}

func (h *providerHealth) record(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	was := h.failed[name]
	switch {
	case err != nil && !was:
		h.failed[name] = true
		logger.Warning("Provider %s failed: %v", name, err)
	case err == nil && was:
		h.failed[name] = false
		logger.Info("Provider %s recovered", name)
	}
}
