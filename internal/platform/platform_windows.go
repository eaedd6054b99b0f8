//go:build windows
// +build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/StackExchange/wmi"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	constants "hostmon/config"
	"hostmon/internal/config"
	"hostmon/internal/logger"
	"hostmon/internal/snapshot"
)

// eventLookback bounds the WMI event queries; WQL has no LIMIT
const eventLookback = 24 * time.Hour

// scm is a query-only connection to the Service Control Manager, held for
// the life of the process
type scm struct {
	m *mgr.Mgr
}

func connectSCM() (*scm, error) {
	h, err := windows.OpenSCManager(nil, nil, windows.SC_MANAGER_CONNECT|windows.SC_MANAGER_ENUMERATE_SERVICE)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service manager: %w", err)
	}
	return &scm{m: &mgr.Mgr{Handle: h}}, nil
}

func (c *scm) open(name string) (*mgr.Service, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenService(c.m.Handle, namePtr, windows.SERVICE_QUERY_STATUS|windows.SERVICE_QUERY_CONFIG)
	if err != nil {
		return nil, err
	}
	return &mgr.Service{Name: name, Handle: h}, nil
}

// running is a ServiceProbe. A service that does not exist is not running.
func (c *scm) running(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s, err := c.open(name)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return false, nil
		}
		return false, err
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return false, err
	}
	return status.State == svc.Running, nil
}

// installRoot resolves the mail-server directory from the transport
// service's binary path
func (c *scm) installRoot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := c.open(constants.EXCHANGE_DETECT_SERVICE)
	if err != nil {
		return "", err
	}
	defer s.Close()

	cfg, err := s.Config()
	if err != nil {
		return "", err
	}
	root, err := InstallRootFromBinary(cfg.BinaryPathName)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("install directory %s: %w", root, err)
	}
	return root, nil
}

// win32NTLogEvent mirrors the Win32_NTLogEvent columns we read
type win32NTLogEvent struct {
	SourceName       string
	EventCode        uint16
	EventType        uint8
	TimeGenerated    time.Time
	Category         uint16
	InsertionStrings []string
}

// wmiEvents reads event logs through WMI
type wmiEvents struct{}

func wmiTime(t time.Time) string {
	return t.UTC().Format("20060102150405") + ".000000-000"
}

func (wmiEvents) query(ctx context.Context, where string, limit int) ([]win32NTLogEvent, error) {
	q := "SELECT SourceName, EventCode, EventType, TimeGenerated, Category, InsertionStrings " +
		"FROM Win32_NTLogEvent WHERE " + where +
		" AND TimeGenerated >= '" + wmiTime(time.Now().Add(-eventLookback)) + "'"

	var rows []win32NTLogEvent
	if err := wmi.QueryWithContext(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("wmi query failed: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TimeGenerated.After(rows[j].TimeGenerated)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func inserts(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ApplicationEvents returns Error and Warning entries; Critical entries
// surface as Error through WMI
func (w wmiEvents) ApplicationEvents(ctx context.Context, limit int) ([]snapshot.EventRecord, error) {
	rows, err := w.query(ctx, "Logfile = 'Application' AND (EventType = 1 OR EventType = 2)", limit)
	if err != nil {
		return nil, err
	}
	out := make([]snapshot.EventRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, snapshot.EventRecord{
			SourceName:    r.SourceName,
			EventID:       uint32(r.EventCode),
			EventType:     int(r.EventType),
			TimeGenerated: r.TimeGenerated.Local().Format(constants.TIME_FORMAT),
			EventCategory: int(r.Category),
			StringInserts: inserts(r.InsertionStrings),
		})
	}
	return out, nil
}

func (w wmiEvents) SecurityLogons(ctx context.Context, limit int) ([]snapshot.LoginRecord, error) {
	where := fmt.Sprintf("Logfile = 'Security' AND EventCode = %d", constants.SECURITY_LOGON_EVENT_ID)
	rows, err := w.query(ctx, where, limit)
	if err != nil {
		return nil, err
	}
	out := make([]snapshot.LoginRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, snapshot.LoginRecord{
			SourceName:    r.SourceName,
			EventID:       uint32(r.EventCode),
			TimeGenerated: r.TimeGenerated.Local().Format(constants.TIME_FORMAT),
			StringInserts: inserts(r.InsertionStrings),
		})
	}
	return out, nil
}

func detectAuto(ctx context.Context, cfg *config.Config) (snapshot.Platform, error) {
	c, err := connectSCM()
	if err != nil {
		return nil, err
	}
	running, err := c.running(ctx, constants.EXCHANGE_DETECT_SERVICE)
	if err != nil {
		logger.Warning("Exchange detection failed: %v", err)
	}
	variant := constants.VARIANT_WINDOWS
	if running {
		variant = constants.VARIANT_EXCHANGE
	}
	return buildWindows(c, cfg, variant), nil
}

func newWindowsFamily(_ context.Context, cfg *config.Config, variant string) (snapshot.Platform, error) {
	c, err := connectSCM()
	if err != nil {
		return nil, err
	}
	return buildWindows(c, cfg, variant), nil
}

func buildWindows(c *scm, cfg *config.Config, variant string) snapshot.Platform {
	table := NewServiceTable(withDefaults(cfg.ServiceTable(), WindowsServices), c.running, cfg.ProviderTimeout)
	if variant != constants.VARIANT_EXCHANGE {
		return NewStrategy(variant, table, nil)
	}

	ext := NewExchange(
		NewServiceTable(ExchangeServices, c.running, cfg.ProviderTimeout),
		c.installRoot,
		wmiEvents{},
		cfg.LogTailLines,
		cfg.EventCount,
	)
	return NewStrategy(variant, table, ext)
}
