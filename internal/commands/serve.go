package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	constants "hostmon/config"
	"hostmon/internal/config"
	"hostmon/internal/logger"
	"hostmon/internal/process"
	"hostmon/internal/server"
	"hostmon/internal/service"
	"hostmon/internal/telemetry"
	"hostmon/internal/ui"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live dashboard",
		Long: `Bind the dashboard address, open it in a browser and stream one
snapshot per second to every connected page.

Examples:
  hostmon serve                       # Serve on the configured address
  hostmon serve --addr 0.0.0.0:8003   # Listen on all interfaces
  hostmon serve --no-open             # Do not launch a browser
  hostmon serve --variant exchange    # Force the Exchange dashboard`,
		RunE: runServeCmd,
	}
	AddServeFlags(cmd)
	return cmd
}

// AddServeFlags registers the serve flags; the root command shares them
func AddServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().Bool("open", true, "Open the dashboard in a browser")
	cmd.Flags().Bool("no-open", false, "Do not open a browser")
	cmd.Flags().String("variant", "", "Platform variant: auto, generic, windows or exchange")
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	return Serve(cmd.Context(), cfg)
}

// applyServeFlags overlays explicitly set flags on the loaded config
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.ListenAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("open") {
		cfg.OpenBrowser, _ = flags.GetBool("open")
	}
	if noOpen, _ := flags.GetBool("no-open"); noOpen {
		cfg.OpenBrowser = false
	}
	if flags.Changed("variant") {
		cfg.Variant, _ = flags.GetString("variant")
	}
	return cfg.Validate()
}

// Serve runs the dashboard until SIGINT/SIGTERM or ctx ends
func Serve(ctx context.Context, cfg *config.Config) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Init(cfg.LogFile)

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error("Panic in serve: %v\n%s", r, buf[:n])
			service.NotifyStopping()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	logger.Info("=== %s starting - PID: %d ===", constants.APP_NAME, os.Getpid())
	defer logger.Info("=== %s exiting - PID: %d ===", constants.APP_NAME, os.Getpid())

	lock, err := process.Acquire()
	if err != nil {
		if errors.Is(err, process.ErrAlreadyRunning) {
			if running, pid, _ := process.Check(); running {
				return fmt.Errorf("%w (PID %d)", err, pid)
			}
		}
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv, err := server.New(rt.ServerDeps())
	if err != nil {
		return err
	}

	// Bind before anything is announced; a taken port ends startup here
	ln, err := server.Listen(cfg.ListenAddr)
	if err != nil {
		logger.Error("%v", err)
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	url := server.URL(ln)
	fmt.Println(ui.RenderBanner(server.PageTitle(rt.Platform)))
	fmt.Println(ui.RenderStatus("success", "Dashboard at "+url))
	fmt.Println(ui.RenderStatus("info", "Press Ctrl+C to stop"))

	exporter := startExporter(ctx, cfg, rt.Metrics)

	if cfg.OpenBrowser {
		if err := server.OpenBrowser(url); err != nil {
			logger.Warning("%v", err)
			fmt.Println(ui.RenderStatus("warning", "Could not open a browser, visit "+url))
		}
	}

	service.NotifyReady()
	service.NotifyStatus("Serving " + url)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err = <-serveErr:
		if err != nil {
			logger.Error("%v", err)
		}
	}

	service.NotifyStopping()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.SHUTDOWN_GRACE_SECONDS*time.Second)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warning("Server shutdown: %v", shutdownErr)
	}
	if exportErr := exporter.Shutdown(shutdownCtx); exportErr != nil {
		logger.Warning("OTLP exporter shutdown: %v", exportErr)
	}
	return err
}

// startExporter starts the OTLP gauges when configured. A failure is
// logged and serving continues without export.
func startExporter(ctx context.Context, cfg *config.Config, m *telemetry.Metrics) *telemetry.Exporter {
	if !cfg.OTelEnabled() {
		return nil
	}

	version := ""
	if GetCurrentVersion != nil {
		version = GetCurrentVersion()
	}
	exporter, err := telemetry.StartOTel(ctx, telemetry.OTelConfig{
		Endpoint: cfg.OTelEndpoint,
		Headers:  cfg.OTelHeaders,
		Interval: cfg.OTelInterval,
		Version:  version,
	}, m.Last)
	if err != nil {
		logger.Warning("OTLP export disabled: %v", err)
		return nil
	}
	logger.Info("Exporting metrics via OTLP to %s", cfg.OTelEndpoint)
	return exporter
}
