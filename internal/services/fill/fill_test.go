package fill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/signature"
)

type fakeStore struct {
	calls  int
	values models.FormValues
	err    error
}

func (f *fakeStore) CreateSignedDocument(_ context.Context, _ string, values models.FormValues) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.values = values
	return "doc-1", nil
}

func testTemplate() models.Template {
	return models.Template{
		ID:   "tpl-1",
		Name: "Lease",
		Fields: models.Fields{
			{ID: "a", Type: models.FieldText, Label: "Name", Required: true, Position: models.Position{X: 10, Y: 10, PageNumber: 1}},
			{ID: "b", Type: models.FieldDate, Label: "Date", Required: false, Position: models.Position{X: 10, Y: 40, PageNumber: 1}},
			{ID: "c", Type: models.FieldSignature, Label: "Signature", Required: true, Position: models.Position{X: 10, Y: 70, PageNumber: 3}},
		},
	}
}

func sigURI(t *testing.T) string {
	t.Helper()
	c := signature.NewCanvas(20, 10)
	c.DrawStrokes([][]signature.Point{{{X: 2, Y: 2}, {X: 18, Y: 8}}})
	uri, err := c.Save()
	require.NoError(t, err)
	return uri
}

func missingLabels(t *testing.T, err error) []string {
	t.Helper()
	var ve *apperrors.ValidationError
	require.True(t, errors.As(err, &ve), "expected a validation error, got %v", err)
	return ve.Fields
}

func TestValidate(t *testing.T) {
	fields := models.Fields{
		{Label: "Name", Required: true},
		{Label: "Date", Required: false},
	}

	tests := []struct {
		name    string
		values  models.FormValues
		missing []string
	}{
		{"empty values", models.FormValues{}, []string{"Name"}},
		{"whitespace only", models.FormValues{"Name": "   "}, []string{"Name"}},
		{"filled", models.FormValues{"Name": "Alice"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(fields, tt.values)
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.missing, missingLabels(t, err))
		})
	}
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	s := NewSession("s", testTemplate())
	assert.Equal(t, []string{"Name", "Signature"}, missingLabels(t, s.Validate()))
}

func TestNextRequiresValue(t *testing.T) {
	s := NewSession("s", testTemplate())
	assert.False(t, s.CanAdvance())

	_, err := s.Next()
	assert.Equal(t, []string{"Name"}, missingLabels(t, err))

	require.NoError(t, s.SetValue("Name", "Alice"))
	assert.True(t, s.CanAdvance())

	page, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, page)

	require.NoError(t, s.SetValue("Date", "2024-05-01"))
	page, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, 3, page, "viewer scrolls to the next field's page")

	f, ok := s.CurrentField()
	require.True(t, ok)
	assert.Equal(t, "Signature", f.Label)

	require.NoError(t, s.SetValue("Signature", sigURI(t)))
	assert.False(t, s.CanAdvance())
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrNoNextField)
}

func TestSetValueRejectsUnknownAndBadSignature(t *testing.T) {
	s := NewSession("s", testTemplate())
	assert.Error(t, s.SetValue("Nope", "x"))
	assert.Error(t, s.SetValue("Signature", "not an image"))
	assert.NoError(t, s.SetValue("Signature", ""), "clearing a signature is allowed")
}

func TestMergeIsShallow(t *testing.T) {
	s := NewSession("s", testTemplate())
	require.NoError(t, s.SetValue("Name", "Alice"))
	require.NoError(t, s.SetValue("Date", "2024-05-01"))

	sig := sigURI(t)
	applied := s.Merge(models.FormValues{"Signature": sig, "Unknown": "x"})

	assert.Equal(t, []string{"Signature"}, applied)
	assert.Equal(t, models.FormValues{"Name": "Alice", "Date": "2024-05-01", "Signature": sig}, s.Values())
}

func TestCancelCaptureKeepsValues(t *testing.T) {
	s := NewSession("s", testTemplate())
	require.NoError(t, s.SetValue("Name", "Alice"))

	_, err := s.OpenCapture(CaptureQR, "Signature")
	require.NoError(t, err)
	assert.NotNil(t, s.Snapshot().Capture)

	s.CancelCapture()

	snap := s.Snapshot()
	assert.Nil(t, snap.Capture)
	assert.Equal(t, "Alice", snap.Values["Name"])
}

func TestOpenCaptureOnlyForSignatures(t *testing.T) {
	s := NewSession("s", testTemplate())
	_, err := s.OpenCapture(CapturePad, "")
	assert.Error(t, err, "current field is a text field")

	_, err = s.OpenCapture("fax", "Signature")
	assert.Error(t, err)

	state, err := s.OpenCapture(CapturePad, "Signature")
	require.NoError(t, err)
	assert.Equal(t, CaptureState{Mode: CapturePad, Label: "Signature"}, state)

	label, err := s.CompleteCapture(sigURI(t))
	require.NoError(t, err)
	assert.Equal(t, "Signature", label)
	assert.Nil(t, s.Snapshot().Capture)

	_, err = s.CompleteCapture(sigURI(t))
	assert.ErrorIs(t, err, ErrNoCapture)
}

func TestStoreSignature(t *testing.T) {
	tests := []struct {
		name        string
		openCapture bool
		mergeFirst  bool
		label       string
		wantLabel   string
		wantErr     bool
	}{
		{"completes the open capture", true, false, "", "Signature", false},
		{"explicit label matching the capture", true, false, "Signature", "Signature", false},
		{"capture closed by a second device first", true, true, "Signature", "Signature", false},
		{"no capture and current field is text", false, false, "", "", true},
		{"explicit signature label without capture", false, false, "Signature", "Signature", false},
		{"text field", false, false, "Name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s", testTemplate())
			require.NoError(t, s.SetValue("Name", "Alice"))
			if tt.openCapture {
				_, err := s.OpenCapture(CaptureQR, "Signature")
				require.NoError(t, err)
			}
			if tt.mergeFirst {
				s.Merge(models.FormValues{"Signature": sigURI(t)})
				require.Nil(t, s.Snapshot().Capture)
			}

			drawn := sigURI(t)
			label, err := s.StoreSignature(tt.label, drawn)
			if tt.wantErr {
				var ve *apperrors.ValidationError
				assert.True(t, errors.As(err, &ve))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, label)

			snap := s.Snapshot()
			assert.Equal(t, drawn, snap.Values[tt.wantLabel])
			assert.Equal(t, "Alice", snap.Values["Name"])
			assert.Nil(t, snap.Capture)
		})
	}
}

func TestRunMergesCaptures(t *testing.T) {
	s := NewSession("s", testTemplate())
	require.NoError(t, s.SetValue("Name", "Alice"))
	_, err := s.OpenCapture(CaptureQR, "Signature")
	require.NoError(t, err)

	updates, stop := s.Watch()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Capture)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, ch)
		close(done)
	}()

	sig := sigURI(t)
	ch <- Capture{Values: models.FormValues{"Signature": sig}}

	select {
	case snap := <-updates:
		assert.Equal(t, sig, snap.Values["Signature"])
		assert.Equal(t, "Alice", snap.Values["Name"])
		assert.Nil(t, snap.Capture, "arrival closes the QR modal")
	case <-time.After(2 * time.Second):
		t.Fatal("no update after capture")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestSubmit(t *testing.T) {
	s := NewSession("s", testTemplate())
	store := &fakeStore{}

	_, err := s.Submit(context.Background(), store)
	assert.Equal(t, []string{"Name", "Signature"}, missingLabels(t, err))
	assert.Equal(t, 0, store.calls, "blocked submissions never reach storage")

	require.NoError(t, s.SetValue("Name", "Alice"))
	_, err = s.Submit(context.Background(), store)
	assert.Equal(t, []string{"Signature"}, missingLabels(t, err))

	require.NoError(t, s.SetValue("Signature", sigURI(t)))
	id, err := s.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
	assert.Equal(t, 1, store.calls)
	assert.Contains(t, store.values, "Name")
	assert.Contains(t, store.values, "Signature")
	assert.Equal(t, "doc-1", s.Snapshot().DocumentID)
}

func TestSubmitStorageFailure(t *testing.T) {
	s := NewSession("s", testTemplate())
	require.NoError(t, s.SetValue("Name", "Alice"))
	require.NoError(t, s.SetValue("Signature", sigURI(t)))

	cause := apperrors.Storage("insert signed document", errors.New("boom"))
	_, err := s.Submit(context.Background(), &fakeStore{err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Empty(t, s.Snapshot().DocumentID)
	assert.Equal(t, "Alice", s.Values()["Name"])
}
