//go:build !windows
// +build !windows

package platform

import (
	"context"
	"fmt"

	"hostmon/internal/config"
	"hostmon/internal/snapshot"
)

func detectAuto(_ context.Context, cfg *config.Config) (snapshot.Platform, error) {
	return newGeneric(cfg), nil
}

func newWindowsFamily(_ context.Context, _ *config.Config, variant string) (snapshot.Platform, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedVariant, variant)
}
