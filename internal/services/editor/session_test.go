package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/coords"
)

func TestSessionApply(t *testing.T) {
	s := NewSession("s1", "owner", "contract.pdf", []byte("%PDF-1.7"), 2)
	defer s.Close()

	steps := []Event{
		{Kind: EventSetPending, Label: "Signature", Type: "signature"},
		{Kind: EventZoomIn},
		{Kind: EventClick, Pointer: coords.Point{X: 110, Y: 220}, PageNumber: 1},
		{Kind: EventSetStep, Step: 5},
		{Kind: EventNudge, Direction: Right},
	}
	var snap SessionSnapshot
	var err error
	for _, ev := range steps {
		snap, err = s.Apply(ev)
		require.NoError(t, err, ev.Kind)
	}

	require.Len(t, snap.Fields, 1)
	assert.InDelta(t, 105, snap.Fields[0].Position.X, 1e-9)
	assert.InDelta(t, 200, snap.Fields[0].Position.Y, 1e-9)
	assert.Equal(t, StateSelected, snap.State)

	fields, err := s.Fields()
	require.NoError(t, err)
	assert.Equal(t, "Signature", fields[0].Label)
	assert.True(t, fields[0].Required)
}

func TestSessionDragOverEvents(t *testing.T) {
	s := NewSession("s1", "owner", "a.pdf", nil, 3)
	_, _ = s.Apply(Event{Kind: EventSetPending, Label: "Date", Type: "date"})
	snap, err := s.Apply(Event{Kind: EventClick, Pointer: coords.Point{X: 10, Y: 10}, PageNumber: 1})
	require.NoError(t, err)
	id := snap.Fields[0].ID

	snap, err = s.Apply(Event{Kind: EventPointerDown, FieldID: id})
	require.NoError(t, err)
	assert.Equal(t, id, snap.DraggingID)

	snap, err = s.Apply(Event{Kind: EventPointerMove, Pointer: coords.Point{X: 40, Y: 70}, PageNumber: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Fields[0].Position.PageNumber)

	snap, err = s.Apply(Event{Kind: EventPointerUp})
	require.NoError(t, err)
	assert.Equal(t, StateSelected, snap.State)
	assert.Empty(t, snap.DraggingID)
	assert.Equal(t, 0, s.pointers.Subscribers())
}

func TestSessionRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"unknown kind", Event{Kind: "explode"}},
		{"page past the end", Event{Kind: EventClick, PageNumber: 9}},
		{"page zero", Event{Kind: EventClick}},
		{"bad step", Event{Kind: EventSetStep, Step: 3}},
		{"bad type", Event{Kind: EventSetPending, Label: "x", Type: "checkbox"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s1", "owner", "a.pdf", nil, 2)
			_, err := s.Apply(tt.ev)
			var ve *apperrors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestSessionFieldsRequiresAtLeastOne(t *testing.T) {
	s := NewSession("s1", "owner", "a.pdf", nil, 1)
	_, err := s.Fields()
	var ve *apperrors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
