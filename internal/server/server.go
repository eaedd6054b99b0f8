// Package server serves the dashboard page, the snapshot stream and the
// JSON APIs over gin.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	constants "hostmon/config"
	"hostmon/internal/config"
	"hostmon/internal/logger"
	"hostmon/internal/metrics"
	"hostmon/internal/snapshot"
	"hostmon/internal/stream"
	"hostmon/internal/telemetry"
)

//go:embed web
var assets embed.FS

// Deps are the long-lived collaborators shared by all requests
type Deps struct {
	Config   *config.Config
	Platform snapshot.Platform
	Static   *snapshot.StaticCache
	Packages *metrics.PackageHistory // nil when package history is disabled
	Metrics  *telemetry.Metrics

	// NewSource builds the per-session sampler. Defaults to a metrics.Probe.
	NewSource func() snapshot.Source
}

// Server owns the HTTP listener and the live sessions
type Server struct {
	deps     Deps
	engine   *gin.Engine
	http     *http.Server
	sessions *stream.Registry
	upgrader websocket.Upgrader

	// sessionCtx outlives requests; hijacked websocket connections are not
	// closed by http.Server.Shutdown, so sessions watch this instead
	sessionCtx    context.Context
	cancelSession context.CancelFunc
}

// New wires the router. It does not bind.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics()
	}
	if deps.Static == nil {
		deps.Static = snapshot.NewStaticCache(metrics.HostFacts{}, deps.Platform, deps.Config.ProviderTimeout)
	}
	if deps.NewSource == nil {
		cfg := deps.Config
		packages := deps.Packages
		deps.NewSource = func() snapshot.Source {
			return metrics.NewProbe(cfg.DiskPath, packages)
		}
	}

	s := &Server{
		deps:     deps,
		sessions: stream.NewRegistry(deps.Metrics.SetActiveSessions),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
	}
	s.sessionCtx, s.cancelSession = context.WithCancel(context.Background())

	engine, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.engine = engine
	s.http = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	t, err := template.New("").ParseFS(assets, "web/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.SetHTMLTemplate(t)

	staticFS, err := fs.Sub(assets, "web/static")
	if err != nil {
		return nil, fmt.Errorf("embedded static directory missing: %w", err)
	}
	r.StaticFS("/static", http.FS(staticFS))

	r.GET("/", s.handleIndex)
	r.GET(constants.WS_PATH, s.handleStream)
	r.GET(constants.SNAPSHOT_API_PATH, s.handleSnapshot)
	r.GET(constants.PACKAGES_API_PATH, s.handlePackages)
	r.GET(constants.PACKAGES_API_PATH+"/range", s.handlePackageRange)
	r.GET(constants.HEALTH_PATH, s.handleHealth)
	r.GET(constants.METRICS_PATH, gin.WrapH(s.deps.Metrics.Handler()))
	return r, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions returns the live session count
func (s *Server) Sessions() int {
	return s.sessions.Count()
}

// Listen binds the address. A bind failure is fatal to startup.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return ln, nil
}

// Serve blocks until the listener fails or Shutdown is called
func (s *Server) Serve(ln net.Listener) error {
	logger.Info("Listening on http://%s", ln.Addr())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops new requests, ends every session and waits for handlers
// up to ctx's deadline
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelSession()
	return s.http.Shutdown(ctx)
}

// URL returns the browsable address for a listener
func URL(ln net.Listener) string {
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return "http://" + ln.Addr().String()
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// sameOrigin accepts clients without an Origin header and browsers on the
// dashboard's own host
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == constants.WS_PATH {
			return
		}
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
