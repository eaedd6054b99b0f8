package metrics

import (
	"fmt"
	"time"

	constants "hostmon/config"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with base-1024 units and two decimals,
// e.g. "512.00 B", "1.50 KB", "3.21 GB"
func FormatBytes(value float64) string {
	for _, unit := range byteUnits {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f PB", value)
}

// ToGB converts bytes to gigabytes (base 1024)
func ToGB(value uint64) float64 {
	return float64(value) / constants.BYTES_PER_GB
}

// FormatUptime renders the time since boot as "{h}h {m}m {s}s".
// Hours are not folded into days.
func FormatUptime(boot, now time.Time) string {
	secs := int64(now.Sub(boot).Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}

// FormatLoad renders the load averages
func FormatLoad(l LoadAvg) string {
	return fmt.Sprintf("1 min: %.2f, 5 min: %.2f, 15 min: %.2f", l.Load1, l.Load5, l.Load15)
}

// FormatTime renders a wall-clock timestamp
func FormatTime(t time.Time) string {
	return t.Format(constants.TIME_FORMAT)
}
