package platform

import (
	"context"
	"errors"
	"fmt"

	constants "hostmon/config"
	"hostmon/internal/config"
	"hostmon/internal/logger"
	"hostmon/internal/snapshot"
)

// ErrUnsupportedVariant is returned when a variant needs an OS it is not
// running on
var ErrUnsupportedVariant = errors.New("variant not supported on this OS")

// Detect picks the platform strategy for the configured variant. It runs
// once at startup; the hot loop never re-checks.
func Detect(ctx context.Context, cfg *config.Config) (snapshot.Platform, error) {
	var (
		p   snapshot.Platform
		err error
	)

	switch cfg.Variant {
	case constants.VARIANT_GENERIC:
		p = newGeneric(cfg)
	case constants.VARIANT_WINDOWS, constants.VARIANT_EXCHANGE:
		p, err = newWindowsFamily(ctx, cfg, cfg.Variant)
	case constants.VARIANT_AUTO, "":
		p, err = detectAuto(ctx, cfg)
	default:
		err = fmt.Errorf("unknown variant %q", cfg.Variant)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Platform strategy: %s", p.Name())
	return p, nil
}

func newGeneric(cfg *config.Config) *Strategy {
	table := NewServiceTable(withDefaults(cfg.ServiceTable(), LinuxServices), systemctlActive, cfg.ProviderTimeout)
	return NewStrategy(constants.VARIANT_GENERIC, table, nil)
}
