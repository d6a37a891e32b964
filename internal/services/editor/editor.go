// Package editor implements the field placement state machine.
//
// An Editor is Idle, has one field Selected, or is Dragging one field.
// Every pointer coordinate goes through coords.ScreenToDocument with the
// editor's current scale, so stored positions never depend on zoom.
//
// Go Pattern: state lives in explicit struct fields owned by the Editor
// instance. The rendering layer reads it through Snapshot instead of sharing
// globals.
package editor

import (
	"errors"
	"fmt"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/coords"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/layout"
)

// State is the editor's interaction state.
type State string

const (
	StateIdle     State = "idle"
	StateSelected State = "selected"
	StateDragging State = "dragging"
)

// Direction is a nudge direction in document space (y grows downward).
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

var (
	// ErrNoSelection is returned by nudge and delete when no field is selected.
	ErrNoSelection = errors.New("no field selected")
	// ErrDragInProgress is returned when another field is targeted mid-drag.
	ErrDragInProgress = errors.New("another field is being dragged")
)

// StepSizes are the allowed nudge distances in document units.
var StepSizes = []float64{0.5, 1, 5, 10}

// Pending holds the settings for the next field placed by a click.
type Pending struct {
	Label    string           `json:"label"`
	Type     models.FieldType `json:"type"`
	Required bool             `json:"required"`
}

type drag struct {
	fieldID string
	start   coords.Point
	release func()
}

// Editor owns a template's layout while it is being created.
type Editor struct {
	layout   *layout.Layout
	pointers *PointerStream

	selectedID string
	drag       *drag
	scale      float64
	step       float64
	pending    Pending
}

// New creates an Idle editor at 100% zoom with a step of 1.
func New(pointers *PointerStream, fields ...models.Field) *Editor {
	return &Editor{
		layout:   layout.New(fields...),
		pointers: pointers,
		scale:    1,
		step:     1,
		pending:  Pending{Type: models.FieldSignature, Required: true},
	}
}

// State reports the current interaction state.
func (e *Editor) State() State {
	switch {
	case e.drag != nil:
		return StateDragging
	case e.selectedID != "":
		return StateSelected
	default:
		return StateIdle
	}
}

// SelectedID returns the selected (or dragged) field id, if any.
func (e *Editor) SelectedID() string { return e.selectedID }

// Scale returns the current zoom level.
func (e *Editor) Scale() float64 { return e.scale }

// Fields returns the current layout in fill order.
func (e *Editor) Fields() models.Fields { return e.layout.ListFields() }

// SetPending updates the label, type and required flag used by the next click.
func (e *Editor) SetPending(p Pending) error {
	if p.Type == "" {
		p.Type = e.pending.Type
	}
	if !p.Type.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown field type %q", p.Type))
	}
	e.pending = p
	return nil
}

// Click places a new field at the pointer on an empty area of page.
// An empty pending label is rejected and nothing changes.
func (e *Editor) Click(pointer, origin coords.Point, page int) (models.Field, error) {
	if e.drag != nil {
		return models.Field{}, ErrDragInProgress
	}
	label := layout.NormalizeLabel(e.pending.Label)
	if label == "" {
		return models.Field{}, apperrors.Validation("enter a field label before placing a field")
	}
	doc, err := coords.ScreenToDocument(pointer, origin, e.scale)
	if err != nil {
		return models.Field{}, err
	}
	field, err := e.layout.AddField(e.pending.Type, models.Position{X: doc.X, Y: doc.Y, PageNumber: page}, label, e.pending.Required)
	if err != nil {
		return models.Field{}, err
	}

	e.pending.Label = ""
	e.selectedID = field.ID
	return field, nil
}

// PointerDown starts dragging a field. Movement is tracked through the
// pointer stream until PointerUp or Close.
func (e *Editor) PointerDown(id string, pointer coords.Point) error {
	if e.drag != nil {
		if e.drag.fieldID == id {
			return nil
		}
		return ErrDragInProgress
	}
	if _, ok := e.layout.Field(id); !ok {
		return apperrors.ErrNotFound
	}

	d := &drag{fieldID: id, start: pointer}
	d.release = e.pointers.Subscribe(e.track)
	e.drag = d
	e.selectedID = id
	return nil
}

// track handles pointer stream events for the active drag.
func (e *Editor) track(ev PointerEvent) error {
	if e.drag == nil {
		return nil
	}
	switch ev.Kind {
	case PointerUp:
		e.endDrag()
		return nil
	case PointerMove:
		field, ok := e.layout.Field(e.drag.fieldID)
		if !ok {
			e.endDrag()
			return apperrors.ErrNotFound
		}
		doc, err := coords.ScreenToDocument(ev.Pointer, ev.Origin, e.scale)
		if err != nil {
			return err
		}
		page := field.Position.PageNumber
		if ev.PageNumber > 0 {
			page = ev.PageNumber
		}
		return e.layout.UpdateFieldPosition(field.ID, models.Position{X: doc.X, Y: doc.Y, PageNumber: page})
	}
	return nil
}

func (e *Editor) endDrag() {
	if e.drag == nil {
		return
	}
	e.drag.release()
	e.drag = nil
}

// Select makes id the nudge and delete target.
func (e *Editor) Select(id string) error {
	if e.drag != nil && e.drag.fieldID != id {
		return ErrDragInProgress
	}
	if _, ok := e.layout.Field(id); !ok {
		return apperrors.ErrNotFound
	}
	e.selectedID = id
	return nil
}

// Deselect returns to Idle. It is ignored while dragging.
func (e *Editor) Deselect() {
	if e.drag == nil {
		e.selectedID = ""
	}
}

// Nudge moves the selected field by the current step along one axis.
func (e *Editor) Nudge(dir Direction) error {
	if e.selectedID == "" {
		return ErrNoSelection
	}
	field, ok := e.layout.Field(e.selectedID)
	if !ok {
		return apperrors.ErrNotFound
	}

	pos := field.Position
	switch dir {
	case Up:
		pos.Y -= e.step
	case Down:
		pos.Y += e.step
	case Left:
		pos.X -= e.step
	case Right:
		pos.X += e.step
	default:
		return apperrors.Validation(fmt.Sprintf("unknown direction %q", dir))
	}
	return e.layout.UpdateFieldPosition(field.ID, pos)
}

// Delete removes the selected field and returns to Idle.
func (e *Editor) Delete() error {
	if e.selectedID == "" {
		return ErrNoSelection
	}
	return e.Remove(e.selectedID)
}

// Remove deletes any field by id. Removing the selected field clears the
// selection and ends a drag on it.
func (e *Editor) Remove(id string) error {
	if err := e.layout.RemoveField(id); err != nil {
		return err
	}
	if e.drag != nil && e.drag.fieldID == id {
		e.endDrag()
	}
	if e.selectedID == id {
		e.selectedID = ""
	}
	return nil
}

// ZoomIn raises the scale by one step, up to the maximum.
func (e *Editor) ZoomIn() float64 {
	e.scale = coords.ClampScale(e.scale + coords.ScaleStep)
	return e.scale
}

// ZoomOut lowers the scale by one step, down to the minimum.
func (e *Editor) ZoomOut() float64 {
	e.scale = coords.ClampScale(e.scale - coords.ScaleStep)
	return e.scale
}

// SetScale sets the zoom level, clamped to the allowed range.
func (e *Editor) SetScale(scale float64) float64 {
	e.scale = coords.ClampScale(scale)
	return e.scale
}

// SetStep picks one of StepSizes as the nudge distance.
func (e *Editor) SetStep(step float64) error {
	for _, s := range StepSizes {
		if s == step {
			e.step = step
			return nil
		}
	}
	return apperrors.Validation(fmt.Sprintf("step must be one of %v", StepSizes))
}

// Close releases drag tracking. The editor must not be used afterwards.
func (e *Editor) Close() {
	e.endDrag()
}

// Snapshot is the editor state handed to the rendering layer.
type Snapshot struct {
	State      State         `json:"state"`
	SelectedID string        `json:"selected_id,omitempty"`
	DraggingID string        `json:"dragging_id,omitempty"`
	Scale      float64       `json:"scale"`
	Step       float64       `json:"step"`
	Pending    Pending       `json:"pending"`
	Fields     models.Fields `json:"fields"`
}

// Snapshot captures the current state.
func (e *Editor) Snapshot() Snapshot {
	s := Snapshot{
		State:      e.State(),
		SelectedID: e.selectedID,
		Scale:      e.scale,
		Step:       e.step,
		Pending:    e.pending,
		Fields:     e.layout.ListFields(),
	}
	if e.drag != nil {
		s.DraggingID = e.drag.fieldID
	}
	return s
}
