package editor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/coords"
)

// Event kinds accepted by Session.Apply.
const (
	EventClick       = "click"
	EventPointerDown = "pointer_down"
	EventPointerMove = "pointer_move"
	EventPointerUp   = "pointer_up"
	EventNudge       = "nudge"
	EventDelete      = "delete"
	EventSelect      = "select"
	EventDeselect    = "deselect"
	EventRemove      = "remove"
	EventZoomIn      = "zoom_in"
	EventZoomOut     = "zoom_out"
	EventSetScale    = "set_scale"
	EventSetStep     = "set_step"
	EventSetPending  = "set_pending"
)

// Event is one user intent sent by the placement UI.
type Event struct {
	Kind       string           `json:"kind" binding:"required"`
	FieldID    string           `json:"field_id,omitempty"`
	Pointer    coords.Point     `json:"pointer"`
	Origin     coords.Point     `json:"origin"`
	PageNumber int              `json:"page_number,omitempty"`
	Direction  Direction        `json:"direction,omitempty"`
	Scale      float64          `json:"scale,omitempty"`
	Step       float64          `json:"step,omitempty"`
	Label      string           `json:"label,omitempty"`
	Type       models.FieldType `json:"type,omitempty"`
	Required   *bool            `json:"required,omitempty"`
}

// Session is one operator's template-creation flow: the uploaded PDF plus
// the editor placing fields on it.
//
// Go Pattern: the editor itself is single-threaded; the session mutex turns
// concurrent HTTP requests into one logical event stream.
type Session struct {
	ID        string
	OwnerID   string
	FileName  string
	PageCount int

	mu       sync.Mutex
	pdf      []byte
	editor   *Editor
	pointers *PointerStream
}

// NewSession creates an editor session for an uploaded PDF.
func NewSession(id, ownerID, fileName string, pdf []byte, pageCount int) *Session {
	pointers := NewPointerStream()
	return &Session{
		ID:        id,
		OwnerID:   ownerID,
		FileName:  fileName,
		PageCount: pageCount,
		pdf:       pdf,
		editor:    New(pointers),
		pointers:  pointers,
	}
}

// PDF returns the uploaded bytes.
func (s *Session) PDF() []byte { return s.pdf }

// SessionSnapshot is the JSON view of a session.
type SessionSnapshot struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	Snapshot
}

// Snapshot returns the current state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		ID:        s.ID,
		FileName:  s.FileName,
		PageCount: s.PageCount,
		Snapshot:  s.editor.Snapshot(),
	}
}

// Apply dispatches one event to the editor and returns the resulting state.
func (s *Session) Apply(ev Event) (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(ev); err != nil {
		return s.snapshotLocked(), err
	}
	return s.snapshotLocked(), nil
}

func (s *Session) apply(ev Event) error {
	e := s.editor
	switch strings.ToLower(ev.Kind) {
	case EventClick:
		if err := s.checkPage(ev.PageNumber); err != nil {
			return err
		}
		_, err := e.Click(ev.Pointer, ev.Origin, ev.PageNumber)
		return err
	case EventPointerDown:
		return e.PointerDown(ev.FieldID, ev.Pointer)
	case EventPointerMove:
		if ev.PageNumber != 0 {
			if err := s.checkPage(ev.PageNumber); err != nil {
				return err
			}
		}
		return s.pointers.Publish(PointerEvent{Kind: PointerMove, Pointer: ev.Pointer, Origin: ev.Origin, PageNumber: ev.PageNumber})
	case EventPointerUp:
		return s.pointers.Publish(PointerEvent{Kind: PointerUp, Pointer: ev.Pointer, Origin: ev.Origin})
	case EventNudge:
		return e.Nudge(ev.Direction)
	case EventDelete:
		return e.Delete()
	case EventSelect:
		return e.Select(ev.FieldID)
	case EventDeselect:
		e.Deselect()
		return nil
	case EventRemove:
		return e.Remove(ev.FieldID)
	case EventZoomIn:
		e.ZoomIn()
		return nil
	case EventZoomOut:
		e.ZoomOut()
		return nil
	case EventSetScale:
		e.SetScale(ev.Scale)
		return nil
	case EventSetStep:
		return e.SetStep(ev.Step)
	case EventSetPending:
		required := true
		if ev.Required != nil {
			required = *ev.Required
		}
		return e.SetPending(Pending{Label: ev.Label, Type: ev.Type, Required: required})
	default:
		return apperrors.Validation(fmt.Sprintf("unknown event kind %q", ev.Kind))
	}
}

func (s *Session) checkPage(page int) error {
	if page < 1 || (s.PageCount > 0 && page > s.PageCount) {
		return apperrors.Validation(fmt.Sprintf("page %d is outside the document (1-%d)", page, s.PageCount))
	}
	return nil
}

// Fields returns the placed fields, or a ValidationError when there are none.
func (s *Session) Fields() (models.Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := s.editor.Fields()
	if len(fields) == 0 {
		return nil, apperrors.Validation("place at least one field before saving")
	}
	return fields, nil
}

// Close releases drag tracking. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.Close()
}
