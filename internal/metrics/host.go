package metrics

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
)

// HostFacts reads host attributes that rarely change
type HostFacts struct{}

// CPUModel returns the processor model string
func (HostFacts) CPUModel(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get CPU info: %w", err)
	}
	if len(infos) == 0 || strings.TrimSpace(infos[0].ModelName) == "" {
		return "", fmt.Errorf("failed to get CPU info: %w", ErrNoData)
	}
	return strings.TrimSpace(infos[0].ModelName), nil
}

// CPUFrequency returns the nominal frequency as "%.2f MHz"
func (HostFacts) CPUFrequency(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get CPU frequency: %w", err)
	}
	if len(infos) == 0 || infos[0].Mhz <= 0 {
		return "", fmt.Errorf("failed to get CPU frequency: %w", ErrNoData)
	}
	return fmt.Sprintf("%.2f MHz", infos[0].Mhz), nil
}

// KernelVersion returns the kernel release
func (HostFacts) KernelVersion(ctx context.Context) (string, error) {
	v, err := host.KernelVersionWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get kernel version: %w", err)
	}
	return v, nil
}

// OSRelease returns a one-line OS description, e.g. "ubuntu 22.04 (linux/x86_64)"
func (HostFacts) OSRelease(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get host info: %w", err)
	}
	name := info.Platform
	if name == "" {
		name = info.OS
	}
	return fmt.Sprintf("%s %s (%s/%s)", name, info.PlatformVersion, info.OS, info.KernelArch), nil
}

// Hostname returns the host name
func (HostFacts) Hostname(ctx context.Context) (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	return name, nil
}

// LoggedInUsers returns the number of login sessions
func (HostFacts) LoggedInUsers(ctx context.Context) (int, error) {
	users, err := host.UsersWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get users: %w", err)
	}
	return len(users), nil
}
