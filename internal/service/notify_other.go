//go:build !linux

package service

// systemd notifications are Linux only

func NotifyReady()        {}
func NotifyStopping()     {}
func NotifyStatus(string) {}
