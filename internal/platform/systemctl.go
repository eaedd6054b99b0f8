package platform

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// systemctlActive runs `systemctl is-active <unit>`. Inactive and unknown
// units exit non-zero, which is reported as not running rather than as an
// error.
func systemctlActive(ctx context.Context, unit string) (bool, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "is-active", unit).Output()
	if bytes.Equal(bytes.TrimSpace(out), []byte("active")) {
		return true, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return false, nil
		}
		return false, err
	}
	return false, nil
}
