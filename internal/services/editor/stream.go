package editor

import (
	"errors"
	"sync"

	"github.com/Shimizu-Technology/sign-tools-api/internal/services/coords"
)

// PointerKind distinguishes movement from release on the pointer stream.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerUp
)

// PointerEvent is one sample from the document-wide pointer stream.
// PageNumber is the page under the pointer (0 means "unchanged").
type PointerEvent struct {
	Kind       PointerKind
	Pointer    coords.Point
	Origin     coords.Point
	PageNumber int
}

// PointerStream fans pointer events out to whoever is tracking a drag.
// Subscribers only exist while a drag is active; an idle editor costs
// nothing on the stream.
type PointerStream struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(PointerEvent) error
}

// NewPointerStream creates an empty stream.
func NewPointerStream() *PointerStream {
	return &PointerStream{subs: make(map[int]func(PointerEvent) error)}
}

// Subscribe registers handler and returns the function that removes it.
// The release function is safe to call more than once.
func (s *PointerStream) Subscribe(handler func(PointerEvent) error) (release func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = handler
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber. Handlers run outside the
// lock so they may release their own subscription.
func (s *PointerStream) Publish(ev PointerEvent) error {
	s.mu.Lock()
	handlers := make([]func(PointerEvent) error, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers returns the number of active subscriptions.
func (s *PointerStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
