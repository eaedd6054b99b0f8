package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	constants "hostmon/config"
	"hostmon/internal/logger"
	"hostmon/internal/snapshot"
)

// tailChunk is how far back each read step goes when tailing a log
const tailChunk = 8 * 1024

// EventReader reads the Windows event logs
type EventReader interface {
	// ApplicationEvents returns the newest Error and Warning entries
	ApplicationEvents(ctx context.Context, limit int) ([]snapshot.EventRecord, error)
	// SecurityLogons returns the newest successful logon entries
	SecurityLogons(ctx context.Context, limit int) ([]snapshot.LoginRecord, error)
}

// RootResolver locates the mail-server install directory
type RootResolver func(ctx context.Context) (string, error)

// Exchange is the mail-server extension
type Exchange struct {
	services   *ServiceTable
	root       RootResolver
	events     EventReader
	tailLines  int
	eventCount int
}

// NewExchange wires the extension providers
func NewExchange(services *ServiceTable, root RootResolver, events EventReader, tailLines, eventCount int) *Exchange {
	return &Exchange{
		services:   services,
		root:       root,
		events:     events,
		tailLines:  tailLines,
		eventCount: eventCount,
	}
}

func (x *Exchange) ServiceStatus(ctx context.Context) (map[string]bool, error) {
	return x.services.Check(ctx)
}

// TransportLogs tails the newest SMTP send and receive protocol logs. A
// missing directory yields an empty list; only when both sides fail is the
// provider reported as failed.
func (x *Exchange) TransportLogs(ctx context.Context) (snapshot.TransportLogs, error) {
	root := x.installRoot(ctx)

	send, sendErr := tailNewest(filepath.Join(root, filepath.FromSlash(constants.EXCHANGE_SMTP_SEND_DIR)), x.tailLines)
	recv, recvErr := tailNewest(filepath.Join(root, filepath.FromSlash(constants.EXCHANGE_SMTP_RECV_DIR)), x.tailLines)
	if sendErr != nil && recvErr != nil {
		return snapshot.TransportLogs{}, errors.Join(sendErr, recvErr)
	}

	logs := snapshot.TransportLogs{SendLog: send, ReceiveLog: recv}
	if logs.SendLog == nil {
		logs.SendLog = []string{}
	}
	if logs.ReceiveLog == nil {
		logs.ReceiveLog = []string{}
	}
	return logs, nil
}

func (x *Exchange) EventLogs(ctx context.Context) ([]snapshot.EventRecord, error) {
	return x.events.ApplicationEvents(ctx, x.eventCount)
}

func (x *Exchange) SecurityLogins(ctx context.Context) ([]snapshot.LoginRecord, error) {
	return x.events.SecurityLogons(ctx, x.eventCount)
}

func (x *Exchange) installRoot(ctx context.Context) string {
	if x.root == nil {
		return constants.EXCHANGE_DEFAULT_ROOT
	}
	root, err := x.root(ctx)
	if err != nil || root == "" {
		logger.Debug("Exchange install root not resolved, using default: %v", err)
		return constants.EXCHANGE_DEFAULT_ROOT
	}
	return root
}

// InstallRootFromBinary derives the install directory from a service
// binary path such as `"C:\...\V15\Bin\MSExchangeTransport.exe" -args`:
// the parent of the directory holding the executable.
func InstallRootFromBinary(binaryPath string) (string, error) {
	exe := strings.TrimSpace(binaryPath)
	if strings.HasPrefix(exe, `"`) {
		parts := strings.SplitN(exe, `"`, 3)
		if len(parts) < 3 {
			return "", fmt.Errorf("unterminated quote in binary path %q", binaryPath)
		}
		exe = parts[1]
	} else if i := strings.IndexByte(exe, ' '); i >= 0 {
		exe = exe[:i]
	}

	bin := parentDir(exe)
	root := parentDir(bin)
	if root == "" || root == bin {
		return "", fmt.Errorf("cannot derive install root from %q", binaryPath)
	}
	return root, nil
}

// parentDir handles both separators so Windows paths parse on any OS
func parentDir(p string) string {
	p = strings.TrimRight(p, `\/`)
	i := strings.LastIndexAny(p, `\/`)
	if i < 0 {
		return ""
	}
	return p[:i]
}

// newestFile returns the most recently modified regular file in dir
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var (
		newest string
		best   int64
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > best {
			newest = filepath.Join(dir, e.Name())
			best = mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no log files in %s", dir)
	}
	return newest, nil
}

func tailNewest(dir string, n int) ([]string, error) {
	file, err := newestFile(dir)
	if err != nil {
		return nil, err
	}
	return TailLines(file, n)
}

// TailLines returns the last n lines of a file without reading it whole.
// Line endings are stripped and invalid UTF-8 is kept as is.
func TailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var (
		buf    []byte
		offset = info.Size()
	)
	// Read backwards until the buffer holds more than n line breaks
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := int64(tailChunk)
		if offset < size {
			size = offset
		}
		offset -= size

		chunk := make([]byte, size)
		if _, err := f.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	text := strings.TrimRight(string(buf), "\r\n")
	if text == "" {
		return []string{}, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines, nil
}
