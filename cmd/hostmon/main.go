package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	constants "hostmon/config"
	"hostmon/internal/commands"
	"hostmon/internal/ui"
)

// VERSION is set during build via ldflags
var VERSION string

// getCurrentVersion returns the ldflags version, falling back to version.txt
func getCurrentVersion() string {
	version := VERSION
	if version == "" {
		if data, err := os.ReadFile("version.txt"); err == nil {
			version = strings.TrimSpace(string(data))
		}
	}
	if version == "" {
		version = "dev"
	}
	return version
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.APP_NAME,
		Short: constants.APP_DESCRIPTION,
		Long: `hostmon samples this machine once per second and streams the result to
a browser dashboard. Run without a command to serve the dashboard.`,
		Version:            getCurrentVersion(),
		SilenceUsage:       true,
		DisableSuggestions: true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE:               commands.NewServeCmd().RunE,
	}
	rootCmd.SetVersionTemplate("v{{.Version}}\n")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.hostmon/config.yaml)")
	commands.AddServeFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewServeCmd(),
		commands.NewSnapshotCmd(),
		commands.NewStatusCmd(),
		commands.NewProcessesCmd(),
		commands.NewWatchCmd(),
		commands.NewPackagesCmd(),
		commands.NewServiceCmd(),
		commands.NewConfigCmd(),
		commands.NewCleanupCmd(),
	)
	return rootCmd
}

func main() {
	commands.GetCurrentVersion = getCurrentVersion

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderStatus("error", err.Error()))
		os.Exit(1)
	}
}
