// Package stream runs one snapshot stream per connected client.
package stream

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	constants "hostmon/config"
	"hostmon/internal/logger"
	"hostmon/internal/metrics"
	"hostmon/internal/snapshot"
)

// State is a session lifecycle stage
type State int32

const (
	Connecting State = iota
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// ErrClientGone reports a client-initiated disconnect. It ends a session
// cleanly and is not a failure.
var ErrClientGone = errors.New("client disconnected")

// Transport is the subset of *websocket.Conn a session needs
type Transport interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Assembler builds one snapshot from the previous tick's counters
type Assembler interface {
	Assemble(ctx context.Context, previous *metrics.CounterSample) (*snapshot.Snapshot, *metrics.CounterSample)
}

// FactsCache is populated before the first tick
type FactsCache interface {
	Ensure(ctx context.Context) snapshot.StaticFacts
}

// Options tune a session
type Options struct {
	Interval  time.Duration
	WriteWait time.Duration
}

// Session streams snapshots to one client. It owns its counter slot; no
// state is shared with other sessions except the read-only facts cache.
type Session struct {
	id        uint64
	transport Transport
	assembler Assembler
	facts     FactsCache
	opts      Options

	state atomic.Int32
	ticks atomic.Uint64
	prev  *metrics.CounterSample
}

// NewSession creates a session in the Connecting state
func NewSession(id uint64, transport Transport, assembler Assembler, facts FactsCache, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(constants.DEFAULT_TICK_INTERVAL_MS) * time.Millisecond
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = constants.WS_WRITE_WAIT_SECONDS * time.Second
	}
	s := &Session{
		id:        id,
		transport: transport,
		assembler: assembler,
		facts:     facts,
		opts:      opts,
	}
	s.state.Store(int32(Connecting))
	return s
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// Ticks returns the number of snapshots sent so far
func (s *Session) Ticks() uint64 { return s.ticks.Load() }

// Run streams until the client leaves, a write fails or ctx ends. The
// transport is closed on return. A client disconnect returns ErrClientGone.
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error("Session %d crashed: %v\n%s", s.id, r, string(buf[:n]))
			err = fmt.Errorf("session %d panic: %v", s.id, r)
		}
		s.close(err)
	}()

	go s.watchClient(cancel)

	if s.facts != nil {
		s.facts.Ensure(ctx)
	}
	if !s.state.CompareAndSwap(int32(Connecting), int32(Streaming)) {
		return fmt.Errorf("session %d already started", s.id)
	}
	logger.Info("Session %d streaming", s.id)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
	}
}

// tick assembles and sends one snapshot, then stores its counters
func (s *Session) tick(ctx context.Context) error {
	snap, current := s.assembler.Assemble(ctx, s.prev)
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	snap.Tick = s.ticks.Load() + 1
	if err := s.transport.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := s.transport.WriteJSON(snap); err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}

	s.ticks.Add(1)
	s.prev = current
	return nil
}

// watchClient drains inbound frames; the first read error means the client
// is gone and cancels the in-flight tick
func (s *Session) watchClient(cancel context.CancelCauseFunc) {
	for {
		if _, _, err := s.transport.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug("Session %d read error: %v", s.id, err)
			}
			cancel(ErrClientGone)
			return
		}
	}
}

func (s *Session) close(reason error) {
	if State(s.state.Swap(int32(Closed))) == Closed {
		return
	}

	// Best effort close frame; the peer may already be gone
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.transport.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = s.transport.Close()

	switch {
	case reason == nil, errors.Is(reason, ErrClientGone), errors.Is(reason, context.Canceled):
		logger.Info("Session %d closed after %d ticks", s.id, s.Ticks())
	default:
		logger.Warning("Session %d closed after %d ticks: %v", s.id, s.Ticks(), reason)
	}
}
