package metrics

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/net"
)

// StatusEstablished is the only connection state shown on the dashboard
const StatusEstablished = "ESTABLISHED"

// ReadCounters returns the aggregate network counters across all interfaces
func ReadCounters(ctx context.Context) (CounterSample, error) {
	stats, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return CounterSample{}, fmt.Errorf("failed to get network counters: %w", err)
	}
	if len(stats) == 0 {
		return CounterSample{}, fmt.Errorf("failed to get network counters: %w", ErrNoData)
	}

	return CounterSample{
		BytesSent:   stats[0].BytesSent,
		BytesRecv:   stats[0].BytesRecv,
		PacketsSent: stats[0].PacketsSent,
		PacketsRecv: stats[0].PacketsRecv,
		Taken:       time.Now(),
	}, nil
}

// Rate derives upload and download throughput in bytes per second from two
// successive samples. With no previous sample both rates are 0. The elapsed
// time is taken from the samples' timestamps; a non-positive interval yields 0.
// A counter that went backwards (interface reset, reboot) contributes 0 for
// that direction instead of a negative rate.
func Rate(previous *CounterSample, current CounterSample) Rates {
	if previous == nil {
		return Rates{}
	}

	elapsed := current.Taken.Sub(previous.Taken).Seconds()
	if elapsed <= 0 {
		return Rates{}
	}

	return Rates{
		Upload:   counterDelta(previous.BytesSent, current.BytesSent) / elapsed,
		Download: counterDelta(previous.BytesRecv, current.BytesRecv) / elapsed,
	}
}

func counterDelta(prev, cur uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}

// ReadConnections lists inet sockets in display form
func ReadConnections(ctx context.Context) ([]Connection, error) {
	conns, err := net.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to get network connections: %w", err)
	}

	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, Connection{
			Type:   socketType(c.Type),
			Laddr:  formatAddr(c.Laddr),
			Raddr:  formatAddr(c.Raddr),
			Status: c.Status,
		})
	}
	return out, nil
}

func socketType(t uint32) string {
	if t == syscall.SOCK_STREAM {
		return "TCP"
	}
	return "UDP"
}

func formatAddr(a net.Addr) string {
	if a.IP == "" && a.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// Established keeps only connections in the ESTABLISHED state, preserving order
func Established(conns []Connection) []Connection {
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if c.Status == StatusEstablished {
			out = append(out, c)
		}
	}
	return out
}

// FormatConnections renders one line per connection
func FormatConnections(conns []Connection) string {
	lines := make([]string, 0, len(conns))
	for _, c := range conns {
		lines = append(lines, fmt.Sprintf("Proto: %s, Local Address: %s, Remote Address: %s, Status: %s",
			c.Type, c.Laddr, c.Raddr, c.Status))
	}
	return strings.Join(lines, "\n")
}

// FormatNetworkInfo renders the rate summary line with auto-scaled units
func FormatNetworkInfo(r Rates) string {
	return fmt.Sprintf("Upload: %s/s, Download: %s/s", FormatBytes(r.Upload), FormatBytes(r.Download))
}
