// Package fill implements the recipient side of signing: walking a
// template's fields in order, collecting values keyed by label, and
// validating before submission.
//
// Signature values can arrive on two channels at once: drawn in the session
// itself, or captured on a second device and delivered asynchronously. Both
// go through Merge, which never replaces the value map wholesale.
package fill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/signature"
)

// CaptureMode is how a signature is being captured outside the form itself.
type CaptureMode string

const (
	// CapturePad is the on-screen signature pad.
	CapturePad CaptureMode = "pad"
	// CaptureQR is a second device reached through a QR code link.
	CaptureQR CaptureMode = "qr"
)

var (
	// ErrNoNextField is returned by Next on the last field.
	ErrNoNextField = errors.New("already at the last field")
	// ErrNoCapture is returned when a capture result arrives with no capture open.
	ErrNoCapture = errors.New("no capture in progress")
)

// Capture is a batch of values delivered by a secondary capture channel.
type Capture struct {
	Values models.FormValues
}

// CaptureState is the transient state of an open pad or QR modal.
type CaptureState struct {
	Mode  CaptureMode `json:"mode"`
	Label string      `json:"label"`
}

// DocumentCreator persists a completed submission.
type DocumentCreator interface {
	CreateSignedDocument(ctx context.Context, templateID string, values models.FormValues) (string, error)
}

// Session is one recipient filling one template. Methods are safe for
// concurrent use; the HTTP handlers and the capture loop share it.
type Session struct {
	ID       string
	Template models.Template

	mu          sync.Mutex
	values      models.FormValues
	current     int
	capture     *CaptureState
	submittedID string
	version     int

	watchers map[chan Snapshot]struct{}
}

// NewSession starts filling tpl at its first field.
func NewSession(id string, tpl models.Template) *Session {
	return &Session{
		ID:       id,
		Template: tpl,
		values:   models.FormValues{},
		watchers: make(map[chan Snapshot]struct{}),
	}
}

func (s *Session) field(label string) (models.Field, bool) {
	for _, f := range s.Template.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return models.Field{}, false
}

func checkValue(f models.Field, value string) error {
	if f.Type == models.FieldSignature && strings.TrimSpace(value) != "" {
		if _, err := signature.DecodeDataURI(value); err != nil {
			return apperrors.Validation(fmt.Sprintf("signature must be an image data URI: %v", err), f.Label)
		}
	}
	return nil
}

// SetValue records the value for one field.
func (s *Session) SetValue(label, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.field(label)
	if !ok {
		return apperrors.Validation("unknown field", label)
	}
	if err := checkValue(f, value); err != nil {
		return err
	}
	s.values[label] = value
	s.changedLocked()
	return nil
}

// Values returns a copy of the collected values.
func (s *Session) Values() models.FormValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyValuesLocked()
}

func (s *Session) copyValuesLocked() models.FormValues {
	out := make(models.FormValues, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// CurrentField returns the field under the cursor.
func (s *Session) CurrentField() (models.Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Session) currentLocked() (models.Field, bool) {
	if s.current < 0 || s.current >= len(s.Template.Fields) {
		return models.Field{}, false
	}
	return s.Template.Fields[s.current], true
}

// CanAdvance reports whether the current field has a value and a field
// follows it.
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAdvanceLocked()
}

func (s *Session) canAdvanceLocked() bool {
	f, ok := s.currentLocked()
	if !ok || s.current >= len(s.Template.Fields)-1 {
		return false
	}
	return strings.TrimSpace(s.values[f.Label]) != ""
}

// Next moves the cursor to the following field and returns the page the
// viewer should scroll to.
func (s *Session) Next() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.currentLocked()
	if !ok || s.current >= len(s.Template.Fields)-1 {
		return 0, ErrNoNextField
	}
	if strings.TrimSpace(s.values[f.Label]) == "" {
		return 0, apperrors.Validation("fill in this field before moving on", f.Label)
	}
	s.current++
	s.changedLocked()
	return s.Template.Fields[s.current].Position.PageNumber, nil
}

// Validate fails closed: every required field with an empty or
// whitespace-only value is reported.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Validate(s.Template.Fields, s.values)
}

// Validate checks values against fields and lists every missing required label.
func Validate(fields models.Fields, values models.FormValues) error {
	var missing []string
	for _, f := range fields {
		if f.Required && strings.TrimSpace(values[f.Label]) == "" {
			missing = append(missing, f.Label)
		}
	}
	if len(missing) > 0 {
		return apperrors.Validation("please fill in all required fields", missing...)
	}
	return nil
}

// Merge shallow-merges values into the session. Labels the template does not
// define, and invalid signature payloads, are dropped. It returns the labels
// that were applied.
func (s *Session) Merge(values models.FormValues) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []string
	for label, v := range values {
		f, ok := s.field(label)
		if !ok || checkValue(f, v) != nil {
			continue
		}
		s.values[label] = v
		applied = append(applied, label)
		if s.capture != nil && s.capture.Mode == CaptureQR && s.capture.Label == label {
			s.capture = nil
		}
	}
	if len(applied) > 0 {
		s.changedLocked()
	}
	return applied
}

// OpenCapture opens the pad or QR modal for a signature field. An empty
// label targets the current field.
func (s *Session) OpenCapture(mode CaptureMode, label string) (CaptureState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode != CapturePad && mode != CaptureQR {
		return CaptureState{}, apperrors.Validation(fmt.Sprintf("unknown capture mode %q", mode))
	}
	if label == "" {
		if f, ok := s.currentLocked(); ok {
			label = f.Label
		}
	}
	f, ok := s.field(label)
	if !ok {
		return CaptureState{}, apperrors.Validation("unknown field", label)
	}
	if f.Type != models.FieldSignature {
		return CaptureState{}, apperrors.Validation("only signature fields can be captured", label)
	}
	s.capture = &CaptureState{Mode: mode, Label: label}
	s.changedLocked()
	return *s.capture, nil
}

// CancelCapture closes the capture modal. Collected values are untouched.
func (s *Session) CancelCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		s.capture = nil
		s.changedLocked()
	}
}

// CompleteCapture stores a pad result under the open capture's label and
// closes the modal.
func (s *Session) CompleteCapture(value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return "", ErrNoCapture
	}
	label := s.capture.Label
	f, _ := s.field(label)
	if err := checkValue(f, value); err != nil {
		return "", err
	}
	s.values[label] = value
	s.capture = nil
	s.changedLocked()
	return label, nil
}

// StoreSignature stores a drawn or generated signature. With an open capture
// for label (or any open capture when label is empty) the value completes it.
// Otherwise it goes to label, or to the current field when label is empty.
// The choice is made under the session lock, so a second-device merge that
// closes the capture concurrently cannot make the value miss.
func (s *Session) StoreSignature(label, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil && (label == "" || label == s.capture.Label) {
		label = s.capture.Label
	} else if label == "" {
		if f, ok := s.currentLocked(); ok {
			label = f.Label
		}
	}

	f, ok := s.field(label)
	if !ok || f.Type != models.FieldSignature {
		return "", apperrors.Validation("not a signature field", label)
	}
	if err := checkValue(f, value); err != nil {
		return "", err
	}
	s.values[label] = value
	if s.capture != nil && s.capture.Label == label {
		s.capture = nil
	}
	s.changedLocked()
	return label, nil
}

// Run merges captures from ch until ctx ends or ch is closed. It is the
// message handler for the secondary-device channel.
func (s *Session) Run(ctx context.Context, ch <-chan Capture) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			s.Merge(c.Values)
		}
	}
}

// Submit validates and persists the collected values as a signed document.
func (s *Session) Submit(ctx context.Context, store DocumentCreator) (string, error) {
	s.mu.Lock()
	if err := Validate(s.Template.Fields, s.values); err != nil {
		s.mu.Unlock()
		return "", err
	}
	values := s.copyValuesLocked()
	s.mu.Unlock()

	id, err := store.CreateSignedDocument(ctx, s.Template.ID, values)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.submittedID = id
	s.changedLocked()
	s.mu.Unlock()
	return id, nil
}

// Snapshot is the JSON view of a fill session.
type Snapshot struct {
	ID           string            `json:"id"`
	TemplateID   string            `json:"template_id"`
	Values       models.FormValues `json:"values"`
	CurrentIndex int               `json:"current_index"`
	CurrentField *models.Field     `json:"current_field,omitempty"`
	CanAdvance   bool              `json:"can_advance"`
	Capture      *CaptureState     `json:"capture,omitempty"`
	Missing      []string          `json:"missing,omitempty"`
	DocumentID   string            `json:"document_id,omitempty"`
	Version      int               `json:"version"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.ID,
		TemplateID:   s.Template.ID,
		Values:       s.copyValuesLocked(),
		CurrentIndex: s.current,
		CanAdvance:   s.canAdvanceLocked(),
		DocumentID:   s.submittedID,
		Version:      s.version,
	}
	if f, ok := s.currentLocked(); ok {
		snap.CurrentField = &f
	}
	if s.capture != nil {
		c := *s.capture
		snap.Capture = &c
	}
	var ve *apperrors.ValidationError
	if err := Validate(s.Template.Fields, s.values); errors.As(err, &ve) {
		snap.Missing = ve.Fields
	}
	return snap
}

// Watch returns a channel that receives a snapshot after every change, and
// a function to stop watching. Slow watchers only see the latest snapshot.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Session) changedLocked() {
	s.version++
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
