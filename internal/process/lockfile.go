// Package process keeps a single dashboard instance per host with an
// exclusively locked PID file.
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	constants "hostmon/config"
	"hostmon/internal/logger"
)

// ErrAlreadyRunning means another process holds the lock
var ErrAlreadyRunning = errors.New("another hostmon instance is already running")

// errLocked is returned by tryLock when the lock is held elsewhere
var errLocked = errors.New("lock held")

// LockFile is an exclusive lock on the PID file, held until Release
type LockFile struct {
	path string
	file *os.File
}

// getPIDFilePath returns the PID file location for the OS.
// A variable so tests can point it at a temp dir.
var getPIDFilePath = func() string {
	name := constants.PID_FILE_NAME

	switch runtime.GOOS {
	case "linux":
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, name)
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "run", name)
		}
		return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.pid", constants.APP_NAME, os.Getuid()))
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, constants.APP_NAME, name)
		}
	default:
		if dir, err := os.UserCacheDir(); err == nil {
			return filepath.Join(dir, constants.APP_NAME, name)
		}
	}
	return filepath.Join(os.TempDir(), name)
}

// PIDFilePath returns where the lock lives
func PIDFilePath() string {
	return getPIDFilePath()
}

// Acquire creates and locks the PID file. It fails with ErrAlreadyRunning
// while another live process holds it; the OS drops the lock when the
// holder exits, so a crashed instance never blocks a new one.
func Acquire() (*LockFile, error) {
	pidFile := getPIDFilePath()

	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	f, err := os.OpenFile(pidFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open PID file: %w", err)
	}

	if err := tryLock(f); err != nil {
		f.Close()
		if errors.Is(err, errLocked) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to lock PID file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		unlock(f)
		f.Close()
		return nil, fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		unlock(f)
		f.Close()
		return nil, fmt.Errorf("failed to write PID: %w", err)
	}

	logger.Info("Acquired PID file lock: %s (PID: %d)", pidFile, os.Getpid())
	return &LockFile{path: pidFile, file: f}, nil
}

// Release unlocks and removes the PID file. Repeated calls are no-ops.
func (lf *LockFile) Release() error {
	if lf == nil || lf.file == nil {
		return nil
	}

	logger.Info("Releasing PID file lock: %s", lf.path)
	unlock(lf.file)
	err := lf.file.Close()
	lf.file = nil
	os.Remove(lf.path)
	return err
}

// Check reports whether a live process holds the lock, and its PID
func Check() (bool, int, error) {
	f, err := os.Open(getPIDFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to open PID file: %w", err)
	}
	defer f.Close()

	if err := tryLock(f); err != nil {
		if errors.Is(err, errLocked) {
			return true, readPID(f), nil
		}
		return false, 0, fmt.Errorf("failed to probe PID file lock: %w", err)
	}
	unlock(f)
	return false, 0, nil
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// IsHostmonProcess guards against PID reuse by checking the command line
func IsHostmonProcess(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	cmdline, err := p.Cmdline()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(cmdline), constants.APP_NAME)
}

// CleanupStale removes a PID file nobody holds, or one whose PID now
// belongs to another program
func CleanupStale() error {
	pidFile := getPIDFilePath()

	running, pid, err := Check()
	if err != nil {
		return err
	}
	if !running {
		os.Remove(pidFile)
		return nil
	}
	if !IsHostmonProcess(pid) {
		logger.Info("PID file holds PID of a non-hostmon process (%d), cleaning up", pid)
		os.Remove(pidFile)
		return nil
	}
	return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
}
