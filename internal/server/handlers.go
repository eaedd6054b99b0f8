package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	constants "hostmon/config"
	"hostmon/internal/encoding"
	"hostmon/internal/logger"
	"hostmon/internal/metrics"
	"hostmon/internal/snapshot"
	"hostmon/internal/stream"
)

// PageTitle is the dashboard heading for a platform
func PageTitle(p snapshot.Platform) string {
	if p != nil && p.Extension() != nil {
		return constants.TITLE_EXCHANGE
	}
	return constants.TITLE_DEFAULT
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"page_title": PageTitle(s.deps.Platform),
	})
}

// newAssembler builds an assembler around a fresh sampler. A nil observer
// keeps the snapshot out of the exported gauges.
func (s *Server) newAssembler(observer snapshot.Observer) *snapshot.Assembler {
	cfg := s.deps.Config
	return snapshot.NewAssembler(s.deps.NewSource(), s.deps.Platform, s.deps.Static, snapshot.Options{
		Timeout:  cfg.ProviderTimeout,
		TopN:     cfg.TopProcesses,
		Observer: observer,
	})
}

func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		logger.Warning("WebSocket upgrade failed from %s: %v", c.ClientIP(), err)
		return
	}
	conn.SetReadLimit(1024)

	session := stream.NewSession(s.sessions.NextID(), conn, s.newAssembler(s.deps.Metrics), s.deps.Static, stream.Options{
		Interval:  s.deps.Config.TickInterval,
		WriteWait: constants.WS_WRITE_WAIT_SECONDS * time.Second,
	})
	s.sessions.Add(session)
	defer s.sessions.Remove(session)

	logger.Info("Session %d connected from %s", session.ID(), c.ClientIP())
	_ = session.Run(s.sessionCtx)
}

// handleSnapshot assembles one snapshot with a fresh sampler, so rates and
// CPU deltas read as zero. It is not reported to telemetry.
func (s *Server) handleSnapshot(c *gin.Context) {
	snap, _ := s.newAssembler(nil).Assemble(c.Request.Context(), nil)
	snap.Tick = 1

	format := encoding.Negotiate(c.GetHeader("Accept"))
	data, err := encoding.Marshal(format, snap)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func parseBound(c *gin.Context, key string) (int64, bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *Server) packageError(c *gin.Context, err error) {
	if errors.Is(err, metrics.ErrNoPackageDB) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	logger.Error("Package history query failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handlePackages(c *gin.Context) {
	if s.deps.Packages == nil {
		s.packageError(c, metrics.ErrNoPackageDB)
		return
	}

	start, hasStart, err := parseBound(c, "start")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a unix timestamp"})
		return
	}
	end, hasEnd, err := parseBound(c, "end")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a unix timestamp"})
		return
	}
	days, hasDays, err := parseBound(c, "days")
	if err != nil || (hasDays && days <= 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	if hasDays && !hasStart {
		// days counts back from end, or from now when end is open
		anchor := time.Now().Unix()
		if hasEnd {
			anchor = end
		}
		start, hasStart = anchor-days*24*60*60, true
	}
	if hasStart && hasEnd && start > end {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start is after end"})
		return
	}

	events, err := s.deps.Packages.Events(c.Request.Context(), start, end)
	if err != nil {
		s.packageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"packages":     metrics.GroupPackageEvents(events),
		"total_events": len(events),
	})
}

func (s *Server) handlePackageRange(c *gin.Context) {
	if s.deps.Packages == nil {
		s.packageError(c, metrics.ErrNoPackageDB)
		return
	}
	r, err := s.deps.Packages.TimeRange(c.Request.Context())
	if err != nil {
		s.packageError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleHealth(c *gin.Context) {
	platform := ""
	if s.deps.Platform != nil {
		platform = s.deps.Platform.Name()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"platform": platform,
	})
}
