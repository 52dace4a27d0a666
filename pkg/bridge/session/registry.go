package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Handle is the control surface a running call registers so the registry can
// cancel it during shutdown.
type Handle struct {
	Cancel func()
}

// Registry owns every live session. It is the only place sessions are created
// and removed.
type Registry struct {
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	session *Session
	handle  Handle
	once    sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Start returns the session for id, creating it when absent. An empty id gets
// a generated one. Calling Start twice with the same id returns the same
// session.
func (r *Registry) Start(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = fmt.Sprintf("session_%d", r.now().UnixMilli())
	}
	if e, ok := r.sessions[id]; ok {
		return e.session
	}

	e := &entry{session: &Session{
		ID:        id,
		CreatedAt: r.now(),
		now:       r.now,
	}}
	r.sessions[id] = e
	r.wg.Add(1)
	return e.session
}

// Attach records the cancel handle for a running call. It is a no-op for
// unknown ids.
func (r *Registry) Attach(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.handle = h
	}
}

// Get returns the session for id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		return e.session
	}
	return nil
}

// Stop removes the session. Removal happens at most once per started id.
func (r *Registry) Stop(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		e.once.Do(r.wg.Done)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CancelAll invokes every registered cancel handle. Sessions stay in the
// registry until their call loops Stop themselves.
func (r *Registry) CancelAll() (canceled int) {
	var cancels []func()
	r.mu.Lock()
	for _, e := range r.sessions {
		if e.handle.Cancel != nil {
			cancels = append(cancels, e.handle.Cancel)
		}
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every started session has been stopped, or ctx expires.
// It reports whether the registry drained.
func (r *Registry) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
