package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/coords"
)

var origin = coords.Point{X: 20, Y: 80}

func place(t *testing.T, e *Editor, label string, pointer coords.Point, page int) models.Field {
	t.Helper()
	require.NoError(t, e.SetPending(Pending{Label: label, Type: models.FieldText, Required: true}))
	f, err := e.Click(pointer, origin, page)
	require.NoError(t, err)
	return f
}

func TestClickPlacesField(t *testing.T) {
	e := New(NewPointerStream())
	e.SetScale(1.5)

	f := place(t, e, "Name", coords.Point{X: 170, Y: 155}, 1)

	assert.InDelta(t, 100, f.Position.X, 1e-9)
	assert.InDelta(t, 50, f.Position.Y, 1e-9)
	assert.Equal(t, 1, f.Position.PageNumber)
	assert.Equal(t, StateSelected, e.State())
	assert.Equal(t, f.ID, e.SelectedID())
	assert.Empty(t, e.Snapshot().Pending.Label, "label resets after placing")
}

func TestClickWithoutLabelIsNoOp(t *testing.T) {
	e := New(NewPointerStream())

	_, err := e.Click(coords.Point{X: 50, Y: 50}, origin, 1)

	var ve *apperrors.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Empty(t, e.Fields())
	assert.Equal(t, StateIdle, e.State())
}

func TestClickRejectsDuplicateLabel(t *testing.T) {
	e := New(NewPointerStream())
	place(t, e, "Name", coords.Point{X: 50, Y: 50}, 1)

	require.NoError(t, e.SetPending(Pending{Label: "Name", Type: models.FieldText, Required: true}))
	_, err := e.Click(coords.Point{X: 90, Y: 90}, origin, 1)

	var ve *apperrors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"Name"}, ve.Fields)
	assert.Len(t, e.Fields(), 1)
}

func TestNudgeMovesOneAxisByStep(t *testing.T) {
	tests := []struct {
		dir    Direction
		step   float64
		dx, dy float64
	}{
		{Up, 0.5, 0, -0.5},
		{Down, 1, 0, 1},
		{Left, 5, -5, 0},
		{Right, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			e := New(NewPointerStream())
			other := place(t, e, "Other", coords.Point{X: 300, Y: 300}, 2)
			target := place(t, e, "Target", coords.Point{X: 120, Y: 130}, 1)
			require.NoError(t, e.SetStep(tt.step))

			require.NoError(t, e.Nudge(tt.dir))

			fields := e.Fields()
			moved := fields[1]
			assert.Equal(t, target.ID, moved.ID)
			assert.Equal(t, target.Position.PageNumber, moved.Position.PageNumber)
			assert.InDelta(t, target.Position.X+tt.dx, moved.Position.X, 1e-9)
			assert.InDelta(t, target.Position.Y+tt.dy, moved.Position.Y, 1e-9)
			assert.Equal(t, other.Position, fields[0].Position)
		})
	}
}

func TestNudgeWithoutSelection(t *testing.T) {
	e := New(NewPointerStream())
	assert.ErrorIs(t, e.Nudge(Up), ErrNoSelection)
	assert.ErrorIs(t, e.Delete(), ErrNoSelection)
}

func TestSetStepRejectsUnknownSize(t *testing.T) {
	e := New(NewPointerStream())
	assert.Error(t, e.SetStep(2))
	assert.Equal(t, 1.0, e.Snapshot().Step)
}

func TestDragTracksPointerUntilRelease(t *testing.T) {
	stream := NewPointerStream()
	e := New(stream)
	e.SetScale(2)
	f := place(t, e, "Sig", coords.Point{X: 220, Y: 280}, 1)

	require.NoError(t, e.PointerDown(f.ID, coords.Point{X: 220, Y: 280}))
	assert.Equal(t, StateDragging, e.State())
	assert.Equal(t, 1, stream.Subscribers())

	require.NoError(t, stream.Publish(PointerEvent{Kind: PointerMove, Pointer: coords.Point{X: 240, Y: 300}, Origin: origin}))
	got, _ := e.layout.Field(f.ID)
	assert.InDelta(t, 110, got.Position.X, 1e-9)
	assert.InDelta(t, 110, got.Position.Y, 1e-9)

	require.NoError(t, stream.Publish(PointerEvent{Kind: PointerMove, Pointer: coords.Point{X: 60, Y: 100}, Origin: origin, PageNumber: 2}))
	got, _ = e.layout.Field(f.ID)
	assert.Equal(t, models.Position{X: 20, Y: 10, PageNumber: 2}, got.Position)

	require.NoError(t, stream.Publish(PointerEvent{Kind: PointerUp}))
	assert.Equal(t, StateSelected, e.State())
	assert.Equal(t, f.ID, e.SelectedID())
	assert.Equal(t, 0, stream.Subscribers(), "tracking is released on pointer up")

	// Movement after release no longer reaches the field.
	require.NoError(t, stream.Publish(PointerEvent{Kind: PointerMove, Pointer: coords.Point{X: 500, Y: 500}, Origin: origin}))
	after, _ := e.layout.Field(f.ID)
	assert.Equal(t, got.Position, after.Position)
}

func TestDragIsExclusive(t *testing.T) {
	e := New(NewPointerStream())
	a := place(t, e, "A", coords.Point{X: 50, Y: 50}, 1)
	b := place(t, e, "B", coords.Point{X: 150, Y: 150}, 1)

	require.NoError(t, e.PointerDown(a.ID, coords.Point{X: 50, Y: 50}))

	assert.ErrorIs(t, e.PointerDown(b.ID, coords.Point{}), ErrDragInProgress)
	assert.ErrorIs(t, e.Select(b.ID), ErrDragInProgress)
	assert.Equal(t, a.ID, e.SelectedID())
}

func TestCloseReleasesTracking(t *testing.T) {
	stream := NewPointerStream()
	e := New(stream)
	f := place(t, e, "A", coords.Point{X: 50, Y: 50}, 1)
	require.NoError(t, e.PointerDown(f.ID, coords.Point{}))

	e.Close()
	e.Close()

	assert.Equal(t, 0, stream.Subscribers())
}

func TestDeleteClearsSelection(t *testing.T) {
	e := New(NewPointerStream())
	a := place(t, e, "A", coords.Point{X: 50, Y: 50}, 1)
	b := place(t, e, "B", coords.Point{X: 60, Y: 60}, 1)

	require.NoError(t, e.Remove(a.ID))
	assert.Equal(t, b.ID, e.SelectedID(), "removing another field keeps the selection")

	require.NoError(t, e.Delete())
	assert.Equal(t, StateIdle, e.State())
	assert.Empty(t, e.Fields())
}

func TestZoomIsClamped(t *testing.T) {
	e := New(NewPointerStream())
	for i := 0; i < 20; i++ {
		e.ZoomIn()
	}
	assert.Equal(t, coords.MaxScale, e.Scale())
	for i := 0; i < 20; i++ {
		e.ZoomOut()
	}
	assert.Equal(t, coords.MinScale, e.Scale())
}

// Fields placed at 150% zoom land at the same relative spot when the page is
// rendered at 75%.
func TestPlacementIsZoomIndependent(t *testing.T) {
	e := New(NewPointerStream())
	e.SetScale(1.5)

	clicks := []struct {
		label   string
		pointer coords.Point
		page    int
	}{
		{"One", coords.Point{X: 170, Y: 155}, 1},
		{"Two", coords.Point{X: 470, Y: 680}, 1},
		{"Three", coords.Point{X: 320, Y: 380}, 2},
	}
	for _, c := range clicks {
		place(t, e, c.label, c.pointer, c.page)
	}
	saved := e.Fields()

	reloaded := New(NewPointerStream(), saved...)
	reloaded.SetScale(0.75)

	for i, f := range reloaded.Fields() {
		at150 := coords.DocumentToScreen(coords.Point{X: f.Position.X, Y: f.Position.Y}, origin, 1.5)
		at75 := coords.DocumentToScreen(coords.Point{X: f.Position.X, Y: f.Position.Y}, origin, 0.75)

		assert.InDelta(t, clicks[i].pointer.X, at150.X, 1e-9)
		assert.InDelta(t, (at150.X-origin.X)/1.5, (at75.X-origin.X)/0.75, 1e-9)
		assert.InDelta(t, (at150.Y-origin.Y)/1.5, (at75.Y-origin.Y)/0.75, 1e-9)
		assert.Equal(t, clicks[i].page, f.Position.PageNumber)
	}
}
