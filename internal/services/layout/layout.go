// Package layout holds the ordered field list of one template while it is
// being edited.
//
// Go Pattern: Layout is a plain struct with methods, not safe for concurrent
// use. Its single owner (an editor session) serializes access.
package layout

import (
	"crypto/rand"
	"fmt"
	"html"
	"math/big"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// idAlphabet and idLength give field ids the same shape as ids stored by
// earlier versions of the app (9 base36 characters).
const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 9
)

// labelPolicy strips every tag from operator-supplied labels.
var labelPolicy = bluemonday.StrictPolicy()

// Layout is an ordered collection of fields. Insertion order is the fill
// order used when signing.
type Layout struct {
	fields []models.Field
	newID  func() string
}

// New creates a layout, optionally seeded with existing fields.
func New(fields ...models.Field) *Layout {
	l := &Layout{newID: randomID}
	l.fields = append(l.fields, fields...)
	return l
}

// NormalizeLabel trims whitespace and removes markup from a label. Labels
// are plain text, so the entities the sanitizer emits are decoded again.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(strings.TrimSpace(label))))
}

// AddField appends a new field with a fresh id. The label must be non-empty
// after normalization and not used by another field, since values are keyed
// by label.
func (l *Layout) AddField(fieldType models.FieldType, pos models.Position, label string, required bool) (models.Field, error) {
	label = NormalizeLabel(label)
	if label == "" {
		return models.Field{}, apperrors.Validation("field label is required")
	}
	if l.HasLabel(label) {
		return models.Field{}, apperrors.Validation("field label is already used", label)
	}
	if !fieldType.Valid() {
		return models.Field{}, apperrors.Validation(fmt.Sprintf("unknown field type %q", fieldType))
	}
	if pos.PageNumber < 1 {
		return models.Field{}, apperrors.Validation("page number must be 1 or greater")
	}

	field := models.Field{
		ID:       l.uniqueID(),
		Type:     fieldType,
		Label:    label,
		Position: pos,
		Required: required,
	}
	l.fields = append(l.fields, field)
	return field, nil
}

// UpdateFieldPosition moves a field. Type, id and order never change.
func (l *Layout) UpdateFieldPosition(id string, pos models.Position) error {
	i := l.index(id)
	if i < 0 {
		return apperrors.ErrNotFound
	}
	if pos.PageNumber < 1 {
		return apperrors.Validation("page number must be 1 or greater")
	}
	l.fields[i].Position = pos
	return nil
}

// RemoveField deletes a field, keeping the order of the rest.
func (l *Layout) RemoveField(id string) error {
	i := l.index(id)
	if i < 0 {
		return apperrors.ErrNotFound
	}
	l.fields = append(l.fields[:i], l.fields[i+1:]...)
	return nil
}

// ListFields returns a copy of the fields in insertion order.
func (l *Layout) ListFields() models.Fields {
	out := make(models.Fields, len(l.fields))
	copy(out, l.fields)
	return out
}

// Field looks up a single field by id.
func (l *Layout) Field(id string) (models.Field, bool) {
	i := l.index(id)
	if i < 0 {
		return models.Field{}, false
	}
	return l.fields[i], true
}

// HasLabel reports whether a field already uses label.
func (l *Layout) HasLabel(label string) bool {
	label = NormalizeLabel(label)
	for _, f := range l.fields {
		if f.Label == label {
			return true
		}
	}
	return false
}

// Len returns the number of fields.
func (l *Layout) Len() int { return len(l.fields) }

func (l *Layout) index(id string) int {
	for i, f := range l.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (l *Layout) uniqueID() string {
	for {
		id := l.newID()
		if l.index(id) < 0 {
			return id
		}
	}
}

func randomID() string {
	var sb strings.Builder
	limit := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < idLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		sb.WriteByte(idAlphabet[n.Int64()])
	}
	return sb.String()
}

// ValidateFields checks a complete field list, as submitted through the
// non-interactive template API: every label present and unique, every type
// known, every page number 1-based. Labels are normalized in place.
func ValidateFields(fields models.Fields) error {
	seen := make(map[string]bool, len(fields))
	var bad []string
	for i := range fields {
		f := &fields[i]
		f.Label = NormalizeLabel(f.Label)
		switch {
		case f.Label == "":
			bad = append(bad, fmt.Sprintf("field %d: empty label", i+1))
		case seen[f.Label]:
			bad = append(bad, fmt.Sprintf("%s: duplicate label", f.Label))
		case !f.Type.Valid():
			bad = append(bad, fmt.Sprintf("%s: unknown type", f.Label))
		case f.Position.PageNumber < 1:
			bad = append(bad, fmt.Sprintf("%s: invalid page number", f.Label))
		}
		seen[f.Label] = true
		if f.ID == "" {
			f.ID = randomID()
		}
	}
	if len(bad) > 0 {
		return apperrors.Validation("invalid fields", bad...)
	}
	return nil
}
