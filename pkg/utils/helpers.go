package utils

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatPercentage formats a float as percentage
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

// FormatGB renders a gigabyte figure as an IEC size, e.g. "7.8 GiB"
func FormatGB(gb float64) string {
	if gb <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(gb * (1 << 30)))
}

// FormatKBps renders a KB/s rate with a scaled unit
func FormatKBps(kb float64) string {
	if kb <= 0 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(kb*1024)) + "/s"
}

// Ago renders a unix timestamp relative to now, e.g. "3 days ago"
func Ago(unix int64) string {
	if unix <= 0 {
		return "never"
	}
	return humanize.Time(time.Unix(unix, 0))
}

// Round rounds a float64 to specified decimal places
func Round(value float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(value*shift) / shift
}

// TruncateString shortens s to maxLen runes, ending in "..."
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SortedKeys returns the map's keys in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
