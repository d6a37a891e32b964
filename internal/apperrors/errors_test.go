package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorListsEveryField(t *testing.T) {
	err := Validation("missing required fields", "Name", "Signature")
	assert.Equal(t, "missing required fields: Name, Signature", err.Error())

	var ve *ValidationError
	wrapped := fmt.Errorf("submit: %w", err)
	assert.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, []string{"Name", "Signature"}, ve.Fields)
}

func TestStorageWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")

	assert.Nil(t, Storage("upload", nil))

	err := Storage("upload", cause)
	assert.ErrorIs(t, err, cause)

	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "upload", se.Op)
}

func TestPartialWriteErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *PartialWriteError
		want string
	}{
		{
			name: "compensated",
			err:  &PartialWriteError{Path: "a.pdf", Err: errors.New("insert failed")},
			want: "write of a.pdf failed: insert failed",
		},
		{
			name: "orphaned",
			err: &PartialWriteError{
				Path:            "a.pdf",
				Err:             errors.New("insert failed"),
				CompensationErr: errors.New("remove failed"),
			},
			want: "write of a.pdf failed: insert failed (orphaned blob: remove failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
