package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constants "hostmon/config"
	"hostmon/internal/config"
	"hostmon/internal/snapshot"
)

func staticProbe(states map[string]bool) ServiceProbe {
	return func(ctx context.Context, name string) (bool, error) {
		running, ok := states[name]
		if !ok {
			return false, errors.New("no such service")
		}
		return running, nil
	}
}

func TestServiceTable_UsesDisplayNames(t *testing.T) {
	table := NewServiceTable(WindowsServices, staticProbe(map[string]bool{
		"Spooler": true,
		"WSearch": false,
	}), time.Second)

	status, err := table.Check(context.Background())

	require.NoError(t, err)
	assert.True(t, status["Print Spooler"])
	assert.False(t, status["Windows Search"])
	_, hasInternal := status["Spooler"]
	assert.False(t, hasInternal)
	// query failures map to false
	assert.False(t, status["Windows Time"])
}

func TestServiceTable_TableSizes(t *testing.T) {
	assert.Len(t, LinuxServices, 5)
	assert.Len(t, WindowsServices, 62)
	assert.Len(t, ExchangeServices, 17)

	status, err := NewServiceTable(WindowsServices, staticProbe(nil), time.Second).Check(context.Background())
	require.NoError(t, err)
	// two spellings of AudioSrv share one label
	assert.Len(t, status, 61)
}

func TestServiceTable_SharedLabelEitherRunning(t *testing.T) {
	table := NewServiceTable(WindowsServices, staticProbe(map[string]bool{
		"AudioSrv": false,
		"Audiosrv": true,
	}), time.Second)

	status, _ := table.Check(context.Background())

	assert.True(t, status["Windows Audio"])
}

func TestServiceTable_HungProbeTimesOut(t *testing.T) {
	probe := func(ctx context.Context, name string) (bool, error) {
		if name == "lsws" {
			<-ctx.Done()
			return true, ctx.Err()
		}
		return true, nil
	}
	table := NewServiceTable(LinuxServices, probe, 100*time.Millisecond)

	start := time.Now()
	status, err := table.Check(context.Background())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, status["LiteSpeed Web Server"])
	assert.True(t, status["Elasticsearch"])
	assert.Len(t, status, 5)
}

func TestServiceTable_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	probe := func(ctx context.Context, name string) (bool, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return true, nil
	}

	_, err := NewServiceTable(WindowsServices, probe, 5*time.Second).Check(context.Background())

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(constants.MAX_SERVICE_CHECKS))
}

func TestStrategy_ExtensionNilInterface(t *testing.T) {
	s := NewStrategy("generic", NewServiceTable(LinuxServices, staticProbe(nil), time.Second), nil)

	assert.Equal(t, "generic", s.Name())
	assert.Nil(t, s.Extension())
}

func TestDetect_GenericHonorsConfiguredServices(t *testing.T) {
	cfg := config.Default()
	cfg.Variant = constants.VARIANT_GENERIC
	cfg.Services = []config.ServiceEntry{{Name: "sshd"}}

	p, err := Detect(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, constants.VARIANT_GENERIC, p.Name())
	assert.Nil(t, p.Extension())
	s := p.(*Strategy)
	assert.Equal(t, 1, s.table.Len())
}

func TestDetect_WindowsVariantOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows variants are valid here")
	}
	cfg := config.Default()
	cfg.Variant = constants.VARIANT_EXCHANGE

	_, err := Detect(context.Background(), cfg)

	assert.ErrorIs(t, err, ErrUnsupportedVariant)
}

func TestDetect_AutoOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("auto picks a windows variant here")
	}
	p, err := Detect(context.Background(), config.Default())

	require.NoError(t, err)
	assert.Equal(t, constants.VARIANT_GENERIC, p.Name())
}

func TestInstallRootFromBinary(t *testing.T) {
	tests := []struct {
		name    string
		binary  string
		want    string
		wantErr bool
	}{
		{
			name:   "quoted with args",
			binary: `"C:\Program Files\Microsoft\Exchange Server\V15\Bin\MSExchangeTransport.exe" -svc`,
			want:   `C:\Program Files\Microsoft\Exchange Server\V15`,
		},
		{
			name:   "unquoted",
			binary: `D:\Exchange\Bin\MSExchangeTransport.exe`,
			want:   `D:\Exchange`,
		},
		{
			name:    "bare executable",
			binary:  `MSExchangeTransport.exe`,
			wantErr: true,
		},
		{
			name:    "unterminated quote",
			binary:  `"C:\Exchange\Bin\x.exe`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InstallRootFromBinary(tt.binary)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("line ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString("\r\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func TestTailLines(t *testing.T) {
	dir := t.TempDir()

	t.Run("fewer lines than requested", func(t *testing.T) {
		p := filepath.Join(dir, "short.log")
		require.NoError(t, os.WriteFile(p, []byte("a\nb\n"), 0644))

		lines, err := TailLines(p, 10)

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, lines)
	})

	t.Run("spans several chunks", func(t *testing.T) {
		p := filepath.Join(dir, "long.log")
		var b strings.Builder
		for i := 0; i < 5000; i++ {
			b.WriteString(strings.Repeat("z", 20))
			b.WriteString("\n")
		}
		b.WriteString("last")
		require.NoError(t, os.WriteFile(p, []byte(b.String()), 0644))

		lines, err := TailLines(p, 3)

		require.NoError(t, err)
		assert.Equal(t, []string{strings.Repeat("z", 20), strings.Repeat("z", 20), "last"}, lines)
	})

	t.Run("crlf stripped", func(t *testing.T) {
		p := filepath.Join(dir, "crlf.log")
		writeLines(t, p, 12)

		lines, err := TailLines(p, 2)

		require.NoError(t, err)
		require.Len(t, lines, 2)
		for _, l := range lines {
			assert.False(t, strings.ContainsAny(l, "\r\n"))
		}
	})

	t.Run("empty file", func(t *testing.T) {
		p := filepath.Join(dir, "empty.log")
		require.NoError(t, os.WriteFile(p, nil, 0644))

		lines, err := TailLines(p, 5)

		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := TailLines(filepath.Join(dir, "nope.log"), 5)
		assert.Error(t, err)
	})
}

type fakeEvents struct{}

func (fakeEvents) ApplicationEvents(_ context.Context, limit int) ([]snapshot.EventRecord, error) {
	return []snapshot.EventRecord{{SourceName: "MSExchangeIS", EventID: 1001, EventType: 1}}, nil
}

func (fakeEvents) SecurityLogons(_ context.Context, limit int) ([]snapshot.LoginRecord, error) {
	return nil, errors.New("access denied")
}

func TestExchange_TransportLogs(t *testing.T) {
	root := t.TempDir()
	sendDir := filepath.Join(root, filepath.FromSlash(constants.EXCHANGE_SMTP_SEND_DIR))
	require.NoError(t, os.MkdirAll(sendDir, 0755))

	older := filepath.Join(sendDir, "SEND20240101-1.LOG")
	newer := filepath.Join(sendDir, "SEND20240102-1.LOG")
	require.NoError(t, os.WriteFile(older, []byte("old\n"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("one\ntwo\nthree\n"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	x := NewExchange(
		NewServiceTable(ExchangeServices, staticProbe(map[string]bool{"MSExchangeTransport": true}), time.Second),
		func(context.Context) (string, error) { return root, nil },
		fakeEvents{},
		2, 10,
	)

	logs, err := x.TransportLogs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, logs.SendLog)
	// receive directory is absent
	assert.Equal(t, []string{}, logs.ReceiveLog)

	status, err := x.ServiceStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status["Microsoft Exchange Transport"])
	assert.Len(t, status, 17)

	events, err := x.EventLogs(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = x.SecurityLogins(context.Background())
	assert.Error(t, err)
}

func TestExchange_TransportLogsBothMissing(t *testing.T) {
	x := NewExchange(
		NewServiceTable(ExchangeServices, staticProbe(nil), time.Second),
		func(context.Context) (string, error) { return t.TempDir(), nil },
		fakeEvents{}, 10, 10,
	)

	_, err := x.TransportLogs(context.Background())

	assert.Error(t, err)
}
