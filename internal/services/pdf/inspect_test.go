package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/testutil"
)

func TestValidatePDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), true},
		{"too short", []byte("%PDF"), false},
		{"png", []byte("\x89PNG\r\n"), false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePDF(tt.data))
		})
	}
}

func TestInspectCountsPages(t *testing.T) {
	data := testutil.MinimalPDF(testutil.Letter, testutil.Letter, [2]float64{842, 595})

	got, err := Inspect(data)

	require.NoError(t, err)
	assert.Equal(t, 3, got.PageCount)
	assert.Len(t, got.PageWords, 3)
	assert.Equal(t, 0, got.WordCount)
}

func TestInspectRejectsNonPDF(t *testing.T) {
	_, err := Inspect([]byte("hello world"))
	assert.Error(t, err)

	_, err = Inspect([]byte("%PDF-1.4\ngarbage"))
	assert.Error(t, err)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, countWords("   "))
	assert.Equal(t, 3, countWords("sign  here\nplease"))
}
