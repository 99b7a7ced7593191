package session

import (
	"context"
	"sync"
)

// Factory builds a session for a user. Each session gets its own
// reconciler; the directory, log, pipeline and resolver are shared.
type Factory func(userID, token string) *Session

// Registry hands out one live session per authenticated user.
type Registry struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// registryEntry gates priming: concurrent first requests for the same
// user all wait on once, so nobody observes a session before its
// Refresh has completed.
type registryEntry struct {
	once sync.Once
	sess *Session
	err  error
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, entries: make(map[string]*registryEntry)}
}

// Get returns the user's session, creating and priming it on first
// use. Callers racing the first request block until priming finishes.
func (r *Registry) Get(ctx context.Context, userID, token string) (*Session, error) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if !ok {
		e = &registryEntry{}
		r.entries[userID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		s := r.factory(userID, token)
		if err := s.Refresh(ctx); err != nil {
			s.Close()
			e.err = err
			return
		}
		e.sess = s
	})

	if e.err != nil {
		// Forget the failed entry so a later request can retry.
		r.mu.Lock()
		if r.entries[userID] == e {
			delete(r.entries, userID)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.sess, nil
}

// Remove closes and forgets the user's session.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	e := r.entries[userID]
	delete(r.entries, userID)
	r.mu.Unlock()
	if e == nil {
		return
	}
	// Wait out any in-flight priming before touching the session.
	e.once.Do(func() {})
	if e.sess != nil {
		e.sess.Close()
	}
}

// Close tears every session down.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*registryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.once.Do(func() {})
		if e.sess != nil {
			e.sess.Close()
		}
	}
}
