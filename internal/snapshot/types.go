// Package snapshot assembles one self-contained view of host state per tick.
package snapshot

import (
	"time"

	constants "hostmon/config"
	"hostmon/internal/metrics"
)

// =============================================================================
// Static Facts
// =============================================================================

// StaticFacts are host attributes read once per process
type StaticFacts struct {
	CPUInfo          string `json:"cpu_info" cbor:"cpu_info"`
	KernelVersion    string `json:"kernel_version" cbor:"kernel_version"`
	OSRelease        string `json:"os_release" cbor:"os_release"`
	Hostname         string `json:"hostname" cbor:"hostname"`
	CPUFrequency     string `json:"cpu_frequency" cbor:"cpu_frequency"`
	LoggedInUsers    int    `json:"logged_in_users" cbor:"logged_in_users"`
	IsExchangeServer bool   `json:"is_exchange_server" cbor:"is_exchange_server"`
	Platform         string `json:"platform" cbor:"platform"`
}

// =============================================================================
// Platform Extension
// =============================================================================

// TransportLogs are the newest lines of the SMTP protocol logs
type TransportLogs struct {
	SendLog    []string `json:"send_log" cbor:"send_log"`
	ReceiveLog []string `json:"receive_log" cbor:"receive_log"`
}

// EventRecord is one Application event log entry
type EventRecord struct {
	SourceName    string   `json:"SourceName" cbor:"SourceName"`
	EventID       uint32   `json:"EventID" cbor:"EventID"`
	EventType     int      `json:"EventType" cbor:"EventType"`
	TimeGenerated string   `json:"TimeGenerated" cbor:"TimeGenerated"`
	EventCategory int      `json:"EventCategory" cbor:"EventCategory"`
	StringInserts []string `json:"StringInserts" cbor:"StringInserts"`
}

// LoginRecord is one successful logon from the Security event log
type LoginRecord struct {
	SourceName    string   `json:"SourceName" cbor:"SourceName"`
	EventID       uint32   `json:"EventID" cbor:"EventID"`
	TimeGenerated string   `json:"TimeGenerated" cbor:"TimeGenerated"`
	StringInserts []string `json:"StringInserts" cbor:"StringInserts"`
}

// Extension carries the mail-server block. It is embedded by pointer so
// its keys are absent from the wire form when the extension is inactive.
type Extension struct {
	ExchangeServicesStatus map[string]bool `json:"exchange_services_status" cbor:"exchange_services_status"`
	ExchangeLogs           TransportLogs   `json:"exchange_logs" cbor:"exchange_logs"`
	EventLogs              []EventRecord   `json:"event_logs" cbor:"event_logs"`
	SecurityLogins         []LoginRecord   `json:"security_logins" cbor:"security_logins"`
}

// =============================================================================
// Snapshot
// =============================================================================

// NetworkUtilization is throughput in KB/s
type NetworkUtilization struct {
	Upload   float64 `json:"upload" cbor:"upload"`
	Download float64 `json:"download" cbor:"download"`
}

// Snapshot is the unit pushed to a client once per tick
type Snapshot struct {
	Tick uint64 `json:"tick" cbor:"tick"`

	CPUUtilization    float64   `json:"cpu_utilization" cbor:"cpu_utilization"`
	PerCPUUtilization []float64 `json:"per_cpu_utilization" cbor:"per_cpu_utilization"`
	MemoryUtilization float64   `json:"memory_utilization" cbor:"memory_utilization"`
	MemoryTotalGB     float64   `json:"memory_total_gb" cbor:"memory_total_gb"`
	MemoryAvailableGB float64   `json:"memory_available_gb" cbor:"memory_available_gb"`
	MemoryUsedGB      float64   `json:"memory_used_gb" cbor:"memory_used_gb"`
	SwapUtilization   float64   `json:"swap_utilization" cbor:"swap_utilization"`
	DiskUtilization   float64   `json:"disk_utilization" cbor:"disk_utilization"`

	NetworkUtilization NetworkUtilization `json:"network_utilization" cbor:"network_utilization"`
	ServiceStatus      map[string]bool    `json:"service_status" cbor:"service_status"`

	CurrentTime  string                `json:"current_time" cbor:"current_time"`
	UptimeOutput string                `json:"uptime_output" cbor:"uptime_output"`
	ProcessList  []metrics.ProcessInfo `json:"process_list" cbor:"process_list"`

	NetworkInfo            string               `json:"network_info" cbor:"network_info"`
	NetworkConnections     string               `json:"network_connections" cbor:"network_connections"`
	NetworkConnectionsList []metrics.Connection `json:"network_connections_list" cbor:"network_connections_list"`

	DiskRead  string `json:"disk_read" cbor:"disk_read"`
	DiskWrite string `json:"disk_write" cbor:"disk_write"`
	LoadAvg   string `json:"load_avg" cbor:"load_avg"`

	PackageHistory []metrics.PackageEvent `json:"package_history" cbor:"package_history"`

	// Carried for the next tick's rate; null when the counters were unreadable
	CurrentNetIO *metrics.CounterSample `json:"current_net_io" cbor:"current_net_io"`

	StaticFacts
	*Extension
}

// Defaults returns a snapshot holding the documented fallback for every
// field. The extension block is present only when extended is set.
func Defaults(facts StaticFacts, extended bool, now time.Time) *Snapshot {
	s := &Snapshot{
		PerCPUUtilization:      []float64{},
		ServiceStatus:          map[string]bool{},
		CurrentTime:            metrics.FormatTime(now),
		UptimeOutput:           constants.UPTIME_ZERO,
		ProcessList:            []metrics.ProcessInfo{},
		NetworkInfo:            metrics.FormatNetworkInfo(metrics.Rates{}),
		NetworkConnections:     "",
		NetworkConnectionsList: []metrics.Connection{},
		DiskRead:               metrics.FormatBytes(0),
		DiskWrite:              metrics.FormatBytes(0),
		LoadAvg:                constants.NOT_AVAILABLE,
		PackageHistory:         []metrics.PackageEvent{},
		StaticFacts:            facts,
	}
	if extended {
		s.Extension = DefaultExtension()
	}
	return s
}

// DefaultExtension returns the extension block with every field defaulted
func DefaultExtension() *Extension {
	return &Extension{
		ExchangeServicesStatus: map[string]bool{},
		ExchangeLogs:           TransportLogs{SendLog: []string{}, ReceiveLog: []string{}},
		EventLogs:              []EventRecord{},
		SecurityLogins:         []LoginRecord{},
	}
}

// DefaultFacts returns the sentinel for every static fact
func DefaultFacts() StaticFacts {
	return StaticFacts{
		CPUInfo:       constants.NOT_AVAILABLE,
		KernelVersion: constants.NOT_AVAILABLE,
		OSRelease:     constants.NOT_AVAILABLE,
		Hostname:      constants.NOT_AVAILABLE,
		CPUFrequency:  constants.NOT_AVAILABLE,
	}
}
