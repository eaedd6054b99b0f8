package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hostmon/internal/config"
	"hostmon/internal/ui"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults, the config file and HOSTMON_*
environment overrides are applied.

Config file: ~/.hostmon/config.yaml or ./config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderConfig(cfg))
			return nil
		},
	}
}

func renderConfig(cfg *config.Config) string {
	var b strings.Builder

	b.WriteString(ui.NewSection("Server").
		KV("Listen address", cfg.ListenAddr).
		KV("Open browser", fmt.Sprintf("%t", cfg.OpenBrowser)).
		KV("Log file", cfg.LogFile).
		String())

	b.WriteString(ui.NewSection("Sampling").
		KV("Tick interval", cfg.TickInterval.String()).
		KV("Provider timeout", cfg.ProviderTimeout.String()).
		KV("Variant", cfg.Variant).
		KV("Disk path", cfg.DiskPath).
		KV("Top processes", fmt.Sprintf("%d", cfg.TopProcesses)).
		KV("Log tail lines", fmt.Sprintf("%d", cfg.LogTailLines)).
		KV("Event count", fmt.Sprintf("%d", cfg.EventCount)).
		String())

	services := ui.NewSection("Services")
	if len(cfg.Services) == 0 {
		services.Status("info", "Platform default list")
	}
	for _, s := range cfg.ServiceTable() {
		services.KV(s.Name, s.Display)
	}
	b.WriteString(services.String())

	b.WriteString(ui.NewSection("Package History").
		KV("Database", cfg.PackageDB).
		KV("Limit", fmt.Sprintf("%d", cfg.PackageLimit)).
		String())

	otel := ui.NewSection("OpenTelemetry")
	if cfg.OTelEnabled() {
		otel.Status("success", "Export enabled").
			KV("Endpoint", cfg.OTelEndpoint).
			KV("Interval", cfg.OTelInterval.String()).
			KV("Headers", fmt.Sprintf("%d set", len(cfg.OTelHeaders)))
	} else {
		otel.Status("info", "Export disabled (set otel_endpoint)")
	}
	b.WriteString(otel.String())

	return b.String()
}
