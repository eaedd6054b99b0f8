package stream

import (
	"sync"
	"sync/atomic"
)

// Registry tracks live sessions for health reporting and shutdown
type Registry struct {
	nextID atomic.Uint64

	mu       sync.Mutex
	sessions map[uint64]*Session
	onChange func(active int)
}

// NewRegistry creates an empty registry. onChange, if set, is called with
// the new count after every add or remove, under the registry lock so
// counts arrive in order.
func NewRegistry(onChange func(active int)) *Registry {
	return &Registry{
		sessions: make(map[uint64]*Session),
		onChange: onChange,
	}
}

// NextID hands out session identifiers, starting at 1
func (r *Registry) NextID() uint64 {
	return r.nextID.Add(1)
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.notify(len(r.sessions))
}

func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID())
	r.notify(len(r.sessions))
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) notify(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
