// Package service installs the dashboard as an OS service (systemd,
// launchd or the Windows SCM) and reports readiness to systemd.
package service

import (
	"fmt"
	"os"
	"runtime"

	"github.com/takama/daemon"

	constants "hostmon/config"
	"hostmon/internal/logger"
)

const serviceDescription = "hostmon - live host monitoring dashboard"

// installArgs is the command line the service manager runs
var installArgs = []string{"serve", "--no-open"}

// Service wraps takama/daemon
type Service struct {
	daemon daemon.Daemon
}

// daemonKind picks a system-wide unit for root and Windows, a per-user
// agent otherwise
func daemonKind(goos string, euid int) daemon.Kind {
	if goos == "windows" || euid == 0 {
		return daemon.SystemDaemon
	}
	return daemon.UserAgent
}

// New creates a Service for the current user and OS
func New() (*Service, error) {
	d, err := daemon.New(constants.APP_NAME, serviceDescription, daemonKind(runtime.GOOS, os.Geteuid()))
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon: %w", err)
	}
	return &Service{daemon: d}, nil
}

// Install registers the service to run `hostmon serve`
func (s *Service) Install() (string, error) {
	status, err := s.daemon.Install(installArgs...)
	if err != nil {
		return status, err
	}
	logger.Info("Service installed: %s", status)
	return status, nil
}

// Remove unregisters the service
func (s *Service) Remove() (string, error) {
	status, err := s.daemon.Remove()
	if err != nil {
		return status, err
	}
	logger.Info("Service removed: %s", status)
	return status, nil
}

// Start starts the service
func (s *Service) Start() (string, error) {
	status, err := s.daemon.Start()
	if err != nil {
		return status, err
	}
	logger.Info("Service started: %s", status)
	return status, nil
}

// Stop stops the service
func (s *Service) Stop() (string, error) {
	status, err := s.daemon.Stop()
	if err != nil {
		return status, err
	}
	logger.Info("Service stopped: %s", status)
	return status, nil
}

// Status returns the service manager's status text
func (s *Service) Status() (string, error) {
	return s.daemon.Status()
}
