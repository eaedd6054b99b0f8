package snapshot

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostmon/internal/metrics"
)

var baseKeys = map[string]string{
	"tick":                     "number",
	"cpu_utilization":          "number",
	"per_cpu_utilization":      "array",
	"memory_utilization":       "number",
	"memory_total_gb":          "number",
	"memory_available_gb":      "number",
	"memory_used_gb":           "number",
	"swap_utilization":         "number",
	"disk_utilization":         "number",
	"network_utilization":      "object",
	"service_status":           "object",
	"current_time":             "string",
	"uptime_output":            "string",
	"process_list":             "array",
	"network_info":             "string",
	"network_connections":      "string",
	"network_connections_list": "array",
	"disk_read":                "string",
	"disk_write":               "string",
	"load_avg":                 "string",
	"package_history":          "array",
	"cpu_info":                 "string",
	"kernel_version":           "string",
	"os_release":               "string",
	"hostname":                 "string",
	"cpu_frequency":            "string",
	"logged_in_users":          "number",
	"is_exchange_server":       "bool",
	"platform":                 "string",
}

var extensionKeys = map[string]string{
	"exchange_services_status": "object",
	"exchange_logs":            "object",
	"event_logs":               "array",
	"security_logins":          "array",
}

var allProviders = []string{
	"cpu", "memory", "swap", "disk", "disk_io", "net_io",
	"boot_time", "load_avg", "processes", "connections", "packages",
}

func kindOf(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	}
	return "unknown"
}

func toMap(t *testing.T, snap *Snapshot) map[string]any {
	t.Helper()
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func assertShape(t *testing.T, m map[string]any, extended bool) {
	t.Helper()
	for key, kind := range baseKeys {
		v, ok := m[key]
		if assert.True(t, ok, "missing key %s", key) {
			assert.Equal(t, kind, kindOf(v), "key %s", key)
		}
	}
	for key, kind := range extensionKeys {
		v, ok := m[key]
		if extended {
			if assert.True(t, ok, "missing extension key %s", key) {
				assert.Equal(t, kind, kindOf(v), "key %s", key)
			}
		} else {
			assert.False(t, ok, "unexpected extension key %s", key)
		}
	}
	_, ok := m["current_net_io"]
	assert.True(t, ok, "missing key current_net_io")
}

func newTestAssembler(src Source, platform Platform, facts FactSource) *Assembler {
	static := NewStaticCache(facts, platform, time.Second)
	return NewAssembler(src, platform, static, Options{Timeout: 200 * time.Millisecond, TopN: 10})
}

func TestAssemble_AllProvidersHealthy(t *testing.T) {
	src := &fakeSource{counters: metrics.CounterSample{BytesSent: 1000, BytesRecv: 2000, Taken: time.Now()}}
	platform := &fakePlatform{name: "generic", services: map[string]bool{"SSH Server": true, "Cron": false}}
	a := newTestAssembler(src, platform, &countingFacts{})

	snap, current := a.Assemble(context.Background(), nil)

	require.NotNil(t, snap)
	require.NotNil(t, current)
	assert.Equal(t, 42.5, snap.CPUUtilization)
	assert.Equal(t, []float64{40, 45}, snap.PerCPUUtilization)
	assert.Equal(t, 8.0, snap.MemoryTotalGB)
	assert.Regexp(t, `^1h (29m 59s|30m 0s)$`, snap.UptimeOutput)
	assert.Equal(t, "2.00 KB", snap.DiskRead)
	assert.Equal(t, "1 min: 0.50, 5 min: 0.25, 15 min: 0.10", snap.LoadAvg)
	assert.Equal(t, map[string]bool{"SSH Server": true, "Cron": false}, snap.ServiceStatus)
	assert.Equal(t, "Test CPU", snap.CPUInfo)
	assert.Equal(t, "generic", snap.Platform)
	assert.False(t, snap.IsExchangeServer)
	assert.Nil(t, snap.Extension)
	// no previous sample
	assert.Equal(t, NetworkUtilization{}, snap.NetworkUtilization)
	assert.Equal(t, uint64(1000), current.BytesSent)

	assertShape(t, toMap(t, snap), false)
}

func TestAssemble_RateFromPreviousSample(t *testing.T) {
	now := time.Now()
	src := &fakeSource{counters: metrics.CounterSample{BytesSent: 3048, BytesRecv: 1024, Taken: now}}
	a := newTestAssembler(src, &fakePlatform{name: "generic"}, &countingFacts{})
	prev := &metrics.CounterSample{BytesSent: 1000, BytesRecv: 0, Taken: now.Add(-time.Second)}

	snap, _ := a.Assemble(context.Background(), prev)

	assert.InDelta(t, 2.0, snap.NetworkUtilization.Upload, 1e-9)
	assert.InDelta(t, 1.0, snap.NetworkUtilization.Download, 1e-9)
	assert.Equal(t, "Upload: 2.00 KB/s, Download: 1.00 KB/s", snap.NetworkInfo)
}

func TestAssemble_ProcessListTruncated(t *testing.T) {
	procs := make([]metrics.ProcessInfo, 15)
	for i := range procs {
		procs[i] = metrics.ProcessInfo{PID: int32(i + 1), Name: "p", CPUPercent: float64(i)}
	}
	src := &fakeSource{procs: procs}
	a := newTestAssembler(src, &fakePlatform{name: "generic"}, &countingFacts{})

	snap, _ := a.Assemble(context.Background(), nil)

	require.Len(t, snap.ProcessList, 10)
	assert.Equal(t, 14.0, snap.ProcessList[0].CPUPercent)
	assert.Equal(t, 5.0, snap.ProcessList[9].CPUPercent)
}

func TestAssemble_OnlyEstablishedConnections(t *testing.T) {
	src := &fakeSource{conns: []metrics.Connection{
		{Type: "TCP", Laddr: "127.0.0.1:22", Raddr: "10.0.0.1:5000", Status: "ESTABLISHED"},
		{Type: "TCP", Laddr: "0.0.0.0:80", Raddr: "", Status: "LISTEN"},
	}}
	a := newTestAssembler(src, &fakePlatform{name: "generic"}, &countingFacts{})

	snap, _ := a.Assemble(context.Background(), nil)

	require.Len(t, snap.NetworkConnectionsList, 1)
	assert.Equal(t,
		"Proto: TCP, Local Address: 127.0.0.1:22, Remote Address: 10.0.0.1:5000, Status: ESTABLISHED",
		snap.NetworkConnections)
}

func TestAssemble_EveryProviderFailing(t *testing.T) {
	fail := map[string]bool{}
	for _, p := range allProviders {
		fail[p] = true
	}
	obs := newRecordingObserver()
	platform := &fakePlatform{name: "generic", fail: true}
	a := NewAssembler(&fakeSource{fail: fail}, platform,
		NewStaticCache(&countingFacts{fail: true}, platform, time.Second),
		Options{Timeout: 200 * time.Millisecond, Observer: obs})

	snap, current := a.Assemble(context.Background(), nil)

	require.NotNil(t, snap)
	assert.Nil(t, current)
	assert.Nil(t, snap.CurrentNetIO)
	assert.Equal(t, 0.0, snap.CPUUtilization)
	assert.Empty(t, snap.PerCPUUtilization)
	assert.Equal(t, "0h 0m 0s", snap.UptimeOutput)
	assert.Equal(t, "Upload: 0.00 B/s, Download: 0.00 B/s", snap.NetworkInfo)
	assert.Equal(t, "0.00 B", snap.DiskRead)
	assert.Equal(t, "0.00 B", snap.DiskWrite)
	assert.Equal(t, "N/A", snap.LoadAvg)
	assert.Equal(t, "N/A", snap.CPUInfo)
	assert.Equal(t, 0, snap.LoggedInUsers)
	assert.Empty(t, snap.ServiceStatus)

	m := toMap(t, snap)
	assertShape(t, m, false)
	assert.Nil(t, m["current_net_io"])

	assert.Equal(t, 1, obs.ticks)
	for _, p := range allProviders {
		assert.Equal(t, 1, obs.failures[p], p)
	}
	assert.Equal(t, 1, obs.failures["services"])
}

func TestAssemble_RandomFailuresKeepShape(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 25; i++ {
		fail := map[string]bool{}
		for _, p := range allProviders {
			fail[p] = rng.Intn(2) == 0
		}
		var ext ExtensionSource
		extended := rng.Intn(2) == 0
		if extended {
			ext = &fakeExtension{fail: rng.Intn(2) == 0}
		}
		platform := &fakePlatform{name: "exchange", services: map[string]bool{"Print Spooler": true}, fail: rng.Intn(2) == 0, ext: ext}
		a := newTestAssembler(&fakeSource{fail: fail}, platform, &countingFacts{fail: rng.Intn(2) == 0})

		snap, _ := a.Assemble(context.Background(), nil)

		require.NotNil(t, snap)
		assertShape(t, toMap(t, snap), extended)
		assert.Equal(t, extended, snap.IsExchangeServer)
	}
}

func TestAssemble_ExtensionPopulated(t *testing.T) {
	platform := &fakePlatform{name: "exchange", services: map[string]bool{}, ext: &fakeExtension{}}
	a := newTestAssembler(&fakeSource{}, platform, &countingFacts{})

	snap, _ := a.Assemble(context.Background(), nil)

	require.NotNil(t, snap.Extension)
	assert.True(t, snap.IsExchangeServer)
	assert.Equal(t, map[string]bool{"Microsoft Exchange Transport": true}, snap.ExchangeServicesStatus)
	assert.Equal(t, []string{"send"}, snap.ExchangeLogs.SendLog)
	require.Len(t, snap.EventLogs, 1)
	assert.Equal(t, uint32(4624), snap.SecurityLogins[0].EventID)
}

func TestAssemble_ExtensionFailuresDefault(t *testing.T) {
	platform := &fakePlatform{name: "exchange", ext: &fakeExtension{fail: true}}
	a := newTestAssembler(&fakeSource{}, platform, &countingFacts{})

	snap, _ := a.Assemble(context.Background(), nil)

	require.NotNil(t, snap.Extension)
	assert.Empty(t, snap.ExchangeServicesStatus)
	assert.NotNil(t, snap.ExchangeLogs.SendLog)
	assert.NotNil(t, snap.ExchangeLogs.ReceiveLog)
	assert.NotNil(t, snap.EventLogs)
	assert.NotNil(t, snap.SecurityLogins)
}

func TestAssemble_ProviderPanicIsContained(t *testing.T) {
	a := newTestAssembler(&fakeSource{panicOn: "memory"}, &fakePlatform{name: "generic"}, &countingFacts{})

	snap, _ := a.Assemble(context.Background(), nil)

	require.NotNil(t, snap)
	assert.Equal(t, 0.0, snap.MemoryUtilization)
	assert.Equal(t, 42.5, snap.CPUUtilization)
}

func TestAssemble_PlatformPanicDegradesToDefaults(t *testing.T) {
	platform := &brokenPlatform{fakePlatform{name: "generic"}}
	a := newTestAssembler(&fakeSource{}, platform, &countingFacts{})

	var snap *Snapshot
	require.NotPanics(t, func() {
		snap, _ = a.Assemble(context.Background(), nil)
	})

	require.NotNil(t, snap)
	assertShape(t, toMap(t, snap), false)
	assert.Equal(t, 0.0, snap.CPUUtilization)
	assert.Equal(t, DefaultFacts().Hostname, snap.Hostname)
}

func TestAssemble_ObserverPanicDegradesToDefaults(t *testing.T) {
	static := NewStaticCache(&countingFacts{}, &fakePlatform{name: "generic"}, time.Second)
	a := NewAssembler(&fakeSource{}, &fakePlatform{name: "generic"}, static, Options{
		Timeout:  200 * time.Millisecond,
		Observer: panickingObserver{onProvider: true, onTick: true},
	})

	var (
		snap    *Snapshot
		current *metrics.CounterSample
	)
	require.NotPanics(t, func() {
		snap, current = a.Assemble(context.Background(), nil)
	})

	require.NotNil(t, snap)
	assert.Nil(t, current)
	assertShape(t, toMap(t, snap), false)
	assert.Equal(t, 0.0, snap.CPUUtilization)
	assert.Equal(t, "box", snap.Hostname)
}

func TestAssemble_HungProviderTimesOut(t *testing.T) {
	a := newTestAssembler(&fakeSource{block: "disk"}, &fakePlatform{name: "generic"}, &countingFacts{})

	start := time.Now()
	snap, _ := a.Assemble(context.Background(), nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0.0, snap.DiskUtilization)
	assert.Equal(t, 42.5, snap.CPUUtilization)
}

func TestStaticCache_ComputedOnce(t *testing.T) {
	facts := &countingFacts{}
	platform := &fakePlatform{name: "generic"}
	static := NewStaticCache(facts, platform, time.Second)
	a := NewAssembler(&fakeSource{}, platform, static, Options{Timeout: 200 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				a.Assemble(context.Background(), nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(6), facts.calls.Load())
	assert.Equal(t, "box", static.Ensure(context.Background()).Hostname)
	assert.Equal(t, int32(6), facts.calls.Load())
}

func TestStaticCache_CancelledFirstCallerDoesNotPoison(t *testing.T) {
	static := NewStaticCache(&countingFacts{delay: 50 * time.Millisecond}, nil, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	first := static.Ensure(ctx)
	second := static.Ensure(context.Background())

	assert.Equal(t, "box", first.Hostname)
	assert.Equal(t, "box", second.Hostname)
	assert.Equal(t, "Test CPU", second.CPUInfo)
	assert.Equal(t, 2, second.LoggedInUsers)
}

func TestStaticCache_FailedFactsKeepSentinels(t *testing.T) {
	static := NewStaticCache(&countingFacts{fail: true}, nil, time.Second)

	facts := static.Ensure(context.Background())

	assert.Equal(t, DefaultFacts(), facts)
}

func TestDefaults_ExtensionToggle(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	plain := Defaults(DefaultFacts(), false, now)
	ext := Defaults(DefaultFacts(), true, now)

	assert.Equal(t, "2024-01-02 03:04:05", plain.CurrentTime)
	assertShape(t, toMap(t, plain), false)
	assertShape(t, toMap(t, ext), true)
}
