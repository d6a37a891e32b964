package stamper

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/signature"
	"github.com/Shimizu-Technology/sign-tools-api/internal/testutil"
)

var letter = []PageSize{{Width: 612, Height: 792}}

func signatureURI(t *testing.T, w, h int) string {
	t.Helper()
	c := signature.NewCanvas(w, h)
	c.DrawStrokes([][]signature.Point{{{X: 5, Y: 5}, {X: float64(w - 5), Y: float64(h - 5)}}})
	uri, err := c.Save()
	require.NoError(t, err)
	return uri
}

func TestPlanText(t *testing.T) {
	fields := models.Fields{
		{Type: models.FieldText, Label: "Name", Position: models.Position{X: 100, Y: 50, PageNumber: 1}},
	}

	ops, errs := Plan(fields, models.FormValues{"Name": "Alice"}, letter)

	require.Empty(t, errs)
	require.Len(t, ops, 1)
	assert.Equal(t, Op{Label: "Name", Page: 1, Kind: OpText, X: 100, Y: 742, Text: "Alice"}, ops[0])
}

func TestPlanSignatureAnchorsAtTop(t *testing.T) {
	fields := models.Fields{
		{Type: models.FieldSignature, Label: "Sig", Position: models.Position{X: 72, Y: 600, PageNumber: 1}},
	}

	ops, errs := Plan(fields, models.FormValues{"Sig": signatureURI(t, 500, 200)}, letter)

	require.Empty(t, errs)
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, OpImage, op.Kind)
	assert.InDelta(t, 250, op.Width, 1e-9)
	assert.InDelta(t, 100, op.Height, 1e-9)
	assert.InDelta(t, 72, op.X, 1e-9)
	// Flipped y is 192; the image hangs below it.
	assert.InDelta(t, 92, op.Y, 1e-9)
}

func TestPlanSkips(t *testing.T) {
	fields := models.Fields{
		{Type: models.FieldText, Label: "Empty", Position: models.Position{X: 1, Y: 1, PageNumber: 1}},
		{Type: models.FieldSignature, Label: "NoSig", Position: models.Position{X: 1, Y: 1, PageNumber: 1}},
		{Type: models.FieldText, Label: "Page9", Position: models.Position{X: 1, Y: 1, PageNumber: 9}},
		{Type: models.FieldText, Label: "Page0", Position: models.Position{X: 1, Y: 1, PageNumber: 0}},
		{Type: models.FieldSignature, Label: "Broken", Position: models.Position{X: 1, Y: 1, PageNumber: 1}},
		{Type: models.FieldDate, Label: "Date", Position: models.Position{X: 300, Y: 92, PageNumber: 1}},
	}
	values := models.FormValues{
		"Empty":  "",
		"Page9":  "lost",
		"Page0":  "lost",
		"Broken": "data:image/png;base64,bm90IGFuIGltYWdl",
		"Date":   "2024-05-01",
	}

	ops, errs := Plan(fields, values, letter)

	require.Len(t, ops, 1, "only the date survives")
	assert.Equal(t, "Date", ops[0].Label)
	assert.InDelta(t, 700, ops[0].Y, 1e-9)

	require.Len(t, errs, 1)
	var se *apperrors.StampingError
	require.True(t, errors.As(errs[0], &se))
	assert.Equal(t, "Broken", se.Label)
}

func TestPlanUsesEachPagesHeight(t *testing.T) {
	pages := []PageSize{{612, 792}, {842, 595}}
	fields := models.Fields{
		{Type: models.FieldText, Label: "A", Position: models.Position{X: 10, Y: 100, PageNumber: 1}},
		{Type: models.FieldText, Label: "B", Position: models.Position{X: 10, Y: 100, PageNumber: 2}},
	}

	ops, _ := Plan(fields, models.FormValues{"A": "a", "B": "b"}, pages)

	require.Len(t, ops, 2)
	assert.InDelta(t, 692, ops[0].Y, 1e-9)
	assert.InDelta(t, 495, ops[1].Y, 1e-9)
}

func TestApplyWithNothingToDrawCopiesInput(t *testing.T) {
	base := testutil.MinimalPDF()
	out, errs := New().Apply(base, nil)

	assert.Empty(t, errs)
	assert.Equal(t, base, out)
	out[0] = 'X'
	assert.Equal(t, byte('%'), base[0], "output is an independent buffer")
}

func TestStamp(t *testing.T) {
	base := testutil.MinimalPDF(testutil.Letter, testutil.Letter)
	original := append([]byte(nil), base...)

	fields := models.Fields{
		{Type: models.FieldText, Label: "Name", Position: models.Position{X: 100, Y: 50, PageNumber: 1}},
		{Type: models.FieldSignature, Label: "Sig", Position: models.Position{X: 100, Y: 300, PageNumber: 2}},
		{Type: models.FieldText, Label: "Ghost", Position: models.Position{X: 100, Y: 300, PageNumber: 7}},
	}
	values := models.FormValues{
		"Name":  "Alice",
		"Sig":   signatureURI(t, 100, 40),
		"Ghost": "skipped",
	}

	s := New()
	out, err := s.Stamp(base, fields, values)

	require.NoError(t, err)
	assert.Equal(t, original, base, "input bytes are not mutated")
	assert.False(t, bytes.Equal(base, out))

	pages, err := s.PageSizes(out)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.InDelta(t, 792, pages[0].Height, 1e-9)
}

// contentStreams returns every stream in pdf, inflated when it is Flate
// encoded.
func contentStreams(t *testing.T, pdf []byte) []string {
	t.Helper()
	var out []string
	rest := pdf
	for {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			return out
		}
		if i >= 3 && string(rest[i-3:i]) == "end" {
			rest = rest[i+len("stream"):]
			continue
		}
		body := rest[i+len("stream"):]
		body = bytes.TrimPrefix(body, []byte("\r"))
		body = bytes.TrimPrefix(body, []byte("\n"))
		j := bytes.Index(body, []byte("endstream"))
		if j < 0 {
			return out
		}
		raw := body[:j]
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			if inflated, err := io.ReadAll(zr); err == nil {
				raw = inflated
			}
		}
		out = append(out, string(raw))
		rest = body[j+len("endstream"):]
	}
}

var (
	formPlacement = regexp.MustCompile(`[-\d.]+ [-\d.]+ [-\d.]+ [-\d.]+ ([-\d.]+) ([-\d.]+) cm /GS\d+ gs /Fm\d+ Do`)
	textOffset    = regexp.MustCompile(`([-\d.]+) ([-\d.]+) Td[^(]*\(Alice\) Tj`)
)

func parseFloats(t *testing.T, m []string) (float64, float64) {
	t.Helper()
	x, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	y, err := strconv.ParseFloat(m[2], 64)
	require.NoError(t, err)
	return x, y
}

func TestStampDrawsAtFieldPositions(t *testing.T) {
	base := testutil.MinimalPDF(testutil.Letter, testutil.Letter)
	fields := models.Fields{
		{Type: models.FieldText, Label: "Name", Position: models.Position{X: 100, Y: 50, PageNumber: 1}},
		{Type: models.FieldSignature, Label: "Sig", Position: models.Position{X: 200, Y: 300, PageNumber: 2}},
	}
	values := models.FormValues{"Name": "Alice", "Sig": signatureURI(t, 100, 40)}

	out, err := New().Stamp(base, fields, values)
	require.NoError(t, err)

	var placements [][2]float64
	var td []float64
	for _, s := range contentStreams(t, out) {
		for _, m := range formPlacement.FindAllStringSubmatch(s, -1) {
			x, y := parseFloats(t, m)
			placements = append(placements, [2]float64{x, y})
		}
		if m := textOffset.FindStringSubmatch(s); m != nil {
			x, y := parseFloats(t, m)
			td = []float64{x, y}
		}
	}
	require.NotEmpty(t, placements)
	require.Len(t, td, 2, "text form found")
	assert.InDelta(t, TextDescent(), td[1], 1e-6)

	placedAt := func(x, y float64) bool {
		for _, p := range placements {
			if math.Abs(p[0]-x) < 1e-3 && math.Abs(p[1]-y) < 1e-3 {
				return true
			}
		}
		return false
	}

	// The baseline lands on the flipped field position: 792 - 50.
	assert.True(t, placedAt(100-td[0], 742-td[1]), "text form placements: %v", placements)

	// The image hangs below the flipped position by its 0.5x height: 792 - 300 - 20.
	assert.True(t, placedAt(200, 472), "image form placements: %v", placements)

	ops, errs := Plan(fields, values, []PageSize{{612, 792}, {612, 792}})
	require.Empty(t, errs)
	require.Len(t, ops, 2)
	assert.InDelta(t, 50, ops[1].Width, 1e-9)
	assert.InDelta(t, 20, ops[1].Height, 1e-9)
}

func TestStampRejectsGarbage(t *testing.T) {
	_, err := New().Stamp([]byte("not a pdf"), nil, nil)
	assert.Error(t, err)
}
