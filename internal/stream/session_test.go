package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostmon/internal/metrics"
	"hostmon/internal/snapshot"
)

// fakeTransport records written ticks and blocks reads until disconnect
type fakeTransport struct {
	mu        sync.Mutex
	ticks     []uint64
	failWrite bool

	gone      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{gone: make(chan struct{})}
}

func (f *fakeTransport) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("broken pipe")
	}
	f.ticks = append(f.ticks, v.(*snapshot.Snapshot).Tick)
	return nil
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	<-f.gone
	return 0, nil, errors.New("connection reset")
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) WriteControl(int, []byte, time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	f.disconnect()
	return nil
}

func (f *fakeTransport) disconnect() {
	f.closeOnce.Do(func() { close(f.gone) })
}

func (f *fakeTransport) sent() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.ticks...)
}

// fakeAssembler hands out counters from its own base and records what it
// was given as the previous sample
type fakeAssembler struct {
	base  uint64
	delay time.Duration

	mu       sync.Mutex
	seen     []*metrics.CounterSample
	returned []*metrics.CounterSample
}

func (f *fakeAssembler) Assemble(ctx context.Context, prev *metrics.CounterSample) (*snapshot.Snapshot, *metrics.CounterSample) {
	f.mu.Lock()
	cur := &metrics.CounterSample{BytesSent: f.base + uint64(len(f.returned)), Taken: time.Now()}
	f.seen = append(f.seen, prev)
	f.returned = append(f.returned, cur)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.delay):
		}
	}
	return snapshot.Defaults(snapshot.DefaultFacts(), false, time.Now()), cur
}

func (f *fakeAssembler) history() ([]*metrics.CounterSample, []*metrics.CounterSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*metrics.CounterSample(nil), f.seen...), append([]*metrics.CounterSample(nil), f.returned...)
}

type countingCache struct {
	calls atomic.Int32
}

func (c *countingCache) Ensure(context.Context) snapshot.StaticFacts {
	c.calls.Add(1)
	return snapshot.DefaultFacts()
}

func fastOptions() Options {
	return Options{Interval: 5 * time.Millisecond, WriteWait: time.Second}
}

func runAsync(s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func TestSession_TicksInOrderWithOwnCounters(t *testing.T) {
	transports := []*fakeTransport{newFakeTransport(), newFakeTransport()}
	assemblers := []*fakeAssembler{{base: 1000}, {base: 5000}}
	cache := &countingCache{}

	var sessions []*Session
	var results []<-chan error
	for i := range transports {
		s := NewSession(uint64(i+1), transports[i], assemblers[i], cache, fastOptions())
		sessions = append(sessions, s)
		results = append(results, runAsync(s))
	}

	require.Eventually(t, func() bool {
		return sessions[0].Ticks() >= 5 && sessions[1].Ticks() >= 5
	}, 2*time.Second, 5*time.Millisecond)

	for i, tr := range transports {
		tr.disconnect()
		select {
		case err := <-results[i]:
			assert.ErrorIs(t, err, ErrClientGone)
		case <-time.After(2 * time.Second):
			t.Fatal("session did not stop")
		}
	}

	for i, a := range assemblers {
		seen, returned := a.history()
		require.NotEmpty(t, seen)
		assert.Nil(t, seen[0], "first tick of session %d has no previous sample", i)
		for n := 1; n < len(seen); n++ {
			// each tick sees exactly the counters its own session captured last
			assert.Same(t, returned[n-1], seen[n])
			assert.GreaterOrEqual(t, seen[n].BytesSent, a.base)
			assert.Less(t, seen[n].BytesSent, a.base+1000)
		}

		ticks := transports[i].sent()
		for n, tick := range ticks {
			assert.Equal(t, uint64(n+1), tick)
		}
		assert.Equal(t, Closed, sessions[i].State())
		assert.True(t, transports[i].closed.Load())
	}
	assert.Equal(t, int32(2), cache.calls.Load())
}

func TestSession_DisconnectCancelsInFlightTick(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(1, tr, &fakeAssembler{delay: 10 * time.Second}, nil, fastOptions())
	done := runAsync(s)

	require.Eventually(t, func() bool { return s.State() == Streaming }, time.Second, time.Millisecond)
	start := time.Now()
	tr.disconnect()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClientGone)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not cancel the tick")
	}
	assert.Empty(t, tr.sent())
	assert.Equal(t, Closed, s.State())
}

func TestSession_WriteFailureCloses(t *testing.T) {
	tr := newFakeTransport()
	tr.failWrite = true
	s := NewSession(7, tr, &fakeAssembler{}, nil, fastOptions())

	err := s.Run(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClientGone)
	assert.Contains(t, err.Error(), "failed to send snapshot")
	assert.Equal(t, Closed, s.State())
	assert.True(t, tr.closed.Load())
	assert.Equal(t, uint64(0), s.Ticks())
}

func TestSession_ContextCancelStops(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(3, tr, &fakeAssembler{}, nil, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Ticks() > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("session ignored cancellation")
	}
}

func TestSession_NoRestart(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(1, tr, &fakeAssembler{}, nil, fastOptions())
	tr.disconnect()
	_ = s.Run(context.Background())

	err := s.Run(context.Background())

	assert.Error(t, err)
	assert.Equal(t, Closed, s.State())
}

func TestRegistry(t *testing.T) {
	var last atomic.Int32
	r := NewRegistry(func(n int) { last.Store(int32(n)) })

	a := NewSession(r.NextID(), newFakeTransport(), &fakeAssembler{}, nil, fastOptions())
	b := NewSession(r.NextID(), newFakeTransport(), &fakeAssembler{}, nil, fastOptions())
	r.Add(a)
	r.Add(b)

	assert.Equal(t, uint64(1), a.ID())
	assert.Equal(t, uint64(2), b.ID())
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, int32(2), last.Load())

	r.Remove(a)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, int32(1), last.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "closed", Closed.String())
}
