package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/takama/daemon"
)

func TestDaemonKind(t *testing.T) {
	assert.Equal(t, daemon.SystemDaemon, daemonKind("linux", 0))
	assert.Equal(t, daemon.UserAgent, daemonKind("linux", 1000))
	assert.Equal(t, daemon.UserAgent, daemonKind("darwin", 501))
	assert.Equal(t, daemon.SystemDaemon, daemonKind("windows", -1))
}

func TestInstallArgs(t *testing.T) {
	assert.Equal(t, []string{"serve", "--no-open"}, installArgs)
}

func TestNotifyWithoutSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	assert.NotPanics(t, func() {
		NotifyReady()
		NotifyStatus("serving")
		NotifyStopping()
	})
}
