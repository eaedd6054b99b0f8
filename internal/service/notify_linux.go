package service

import (
	"github.com/okzk/sdnotify"

	"hostmon/internal/logger"
)

// NotifyReady tells systemd the listener is bound (Type=notify units)
func NotifyReady() {
	if err := sdnotify.Ready(); err == nil {
		logger.Debug("Sent READY notification to systemd")
	}
}

// NotifyStopping tells systemd shutdown has begun
func NotifyStopping() {
	if err := sdnotify.Stopping(); err == nil {
		logger.Debug("Sent STOPPING notification to systemd")
	}
}

// NotifyStatus sets the unit's status line
func NotifyStatus(status string) {
	_ = sdnotify.Status(status)
}
