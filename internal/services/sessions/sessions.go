// Package sessions keeps short-lived, in-memory interactive sessions (editor
// and signing sessions) and expires them after a period of inactivity.
package sessions

import (
	"sync"
	"time"
)

// Store holds sessions of type T keyed by id.
//
// Go Pattern: Generics let one expiry implementation serve both session
// kinds. The cleanup loop mirrors the rate limiter's: a ticker goroutine
// that sweeps stale entries under the lock.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	ttl     time.Duration
	onEvict func(id string, v T)
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// New creates a store whose entries expire ttl after their last access.
// onEvict (optional) runs for every entry removed by Delete, expiry or Close,
// outside the lock.
func New[T any](ttl time.Duration, onEvict func(id string, v T)) *Store[T] {
	s := &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		onEvict: onEvict,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Put stores v under id.
func (s *Store[T]) Put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry[T]{value: v, lastSeen: s.now()}
}

// Get returns the session and refreshes its expiry.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || s.now().Sub(e.lastSeen) > s.ttl {
		var zero T
		return zero, false
	}
	e.lastSeen = s.now()
	return e.value, true
}

// Each calls fn for every live session. fn must not call back into the store.
func (s *Store[T]) Each(fn func(id string, v T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		fn(id, e.value)
	}
}

// Delete removes a session.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok && s.onEvict != nil {
		s.onEvict(id, e.value)
	}
	return ok
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	now := s.now()
	expired := make(map[string]T)
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.ttl {
			expired[id] = e.value
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for id, v := range expired {
			s.onEvict(id, v)
		}
	}
	return len(expired)
}

// Close stops the cleanup loop and evicts every session.
func (s *Store[T]) Close() {
	s.once.Do(func() {
		close(s.stop)

		s.mu.Lock()
		all := s.entries
		s.entries = make(map[string]*entry[T])
		s.mu.Unlock()

		if s.onEvict != nil {
			for id, e := range all {
				s.onEvict(id, e.value)
			}
		}
	})
}

// cleanup periodically removes stale sessions to prevent memory leaks.
func (s *Store[T]) cleanup() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	// Go Pattern: time.Ticker sends values at regular intervals.
	// Always defer ticker.Stop() to release resources.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}
