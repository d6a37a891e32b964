// Package stamper draws collected values onto a copy of a template's PDF.
//
// Positioning and rendering are split: Plan turns fields and values into
// PDF-space stamp operations (pure, no PDF access), and Apply realizes the
// operations with pdfcpu watermarks in a single pass.
package stamper

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/coords"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/signature"
)

const (
	// ImageScale shrinks signature images relative to their captured pixel size.
	ImageScale = 0.5
	// FontName and FontSize are used for every text and date value.
	FontName = "Helvetica"
	FontSize = 12
)

// OpKind is what a stamp operation draws.
type OpKind string

const (
	OpText  OpKind = "text"
	OpImage OpKind = "image"
)

// PageSize is a page's width and height in PDF points.
type PageSize struct {
	Width  float64
	Height float64
}

// Op is one stamp in PDF space on a 1-based page. X, Y is the baseline start
// for text and the lower-left corner for images.
type Op struct {
	Label  string
	Page   int
	Kind   OpKind
	X, Y   float64
	Text   string
	Image  *signature.Image
	Width  float64
	Height float64
}

// Plan computes the stamp operations for fields and values. Fields on pages
// that do not exist and empty values are skipped. Signature payloads that
// cannot be decoded are returned as StampingErrors and skipped.
func Plan(fields models.Fields, values models.FormValues, pages []PageSize) ([]Op, []error) {
	var ops []Op
	var errs []error

	for _, f := range fields {
		if f.Position.PageNumber < 1 || f.Position.PageNumber > len(pages) {
			continue
		}
		value := values[f.Label]
		if value == "" {
			continue
		}
		page := pages[f.Position.PageNumber-1]
		pt := coords.DocumentToPDF(coords.Point{X: f.Position.X, Y: f.Position.Y}, page.Height)

		if f.Type == models.FieldSignature {
			img, err := signature.DecodeDataURI(value)
			if err != nil {
				errs = append(errs, &apperrors.StampingError{Label: f.Label, Err: err})
				continue
			}
			w := float64(img.Width) * ImageScale
			h := float64(img.Height) * ImageScale
			ops = append(ops, Op{
				Label:  f.Label,
				Page:   f.Position.PageNumber,
				Kind:   OpImage,
				X:      pt.X,
				Y:      pt.Y - h,
				Image:  img,
				Width:  w,
				Height: h,
			})
			continue
		}

		ops = append(ops, Op{
			Label: f.Label,
			Page:  f.Position.PageNumber,
			Kind:  OpText,
			X:     pt.X,
			Y:     pt.Y,
			Text:  value,
		})
	}
	return ops, errs
}

// Stamper renders stamp operations with pdfcpu.
type Stamper struct {
	conf *model.Configuration
}

// New creates a Stamper with relaxed PDF validation, since uploaded
// templates come from arbitrary producers.
func New() *Stamper {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Stamper{conf: conf}
}

// PageSizes reads every page's dimensions.
func (s *Stamper) PageSizes(pdf []byte) ([]PageSize, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdf), s.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page sizes: %w", err)
	}
	sizes := make([]PageSize, len(dims))
	for i, d := range dims {
		sizes[i] = PageSize{Width: d.Width, Height: d.Height}
	}
	return sizes, nil
}

// TextDescent is how far above the lower-left corner of a text stamp pdfcpu
// puts the baseline: the font's descent at FontSize, rounded up.
func TextDescent() float64 {
	return math.Ceil(font.Descent(FontName, FontSize))
}

// watermark builds the pdfcpu stamp for one operation. The description
// anchors the stamp's lower-left corner; the offset is set afterwards so
// coordinates never go through string formatting. Text ops are anchored on
// their baseline, so the stamp box is lowered by the descent.
func watermark(op Op) (*model.Watermark, error) {
	switch op.Kind {
	case OpText:
		desc := fmt.Sprintf("fontname:%s, points:%d, position:bl, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1", FontName, FontSize)
		wm, err := api.TextWatermark(op.Text, desc, true, false, types.POINTS)
		if err != nil {
			return nil, err
		}
		wm.Dx, wm.Dy = op.X, op.Y-TextDescent()
		return wm, nil
	case OpImage:
		desc := fmt.Sprintf("position:bl, scalefactor:%.2f abs, rotation:0, opacity:1", ImageScale)
		wm, err := api.ImageWatermarkForReader(bytes.NewReader(op.Image.Data), desc, true, false, types.POINTS)
		if err != nil {
			return nil, err
		}
		wm.Dx, wm.Dy = op.X, op.Y
		return wm, nil
	default:
		return nil, fmt.Errorf("unknown stamp kind %q", op.Kind)
	}
}

// Apply draws ops onto a copy of base. Operations that pdfcpu rejects are
// returned as StampingErrors and skipped. base is never modified.
func (s *Stamper) Apply(base []byte, ops []Op) ([]byte, []error) {
	var errs []error
	byPage := make(map[int][]*model.Watermark)
	for _, op := range ops {
		wm, err := watermark(op)
		if err != nil {
			errs = append(errs, &apperrors.StampingError{Label: op.Label, Err: err})
			continue
		}
		byPage[op.Page] = append(byPage[op.Page], wm)
	}

	if len(byPage) == 0 {
		out := make([]byte, len(base))
		copy(out, base)
		return out, errs
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(base), &buf, byPage, s.conf); err != nil {
		return nil, append(errs, fmt.Errorf("failed to stamp PDF: %w", err))
	}
	return buf.Bytes(), errs
}

// Stamp renders values onto base and returns new PDF bytes. Per-field
// failures are logged and skipped; only a PDF that cannot be read or
// written fails the whole pass.
func (s *Stamper) Stamp(base []byte, fields models.Fields, values models.FormValues) ([]byte, error) {
	pages, err := s.PageSizes(base)
	if err != nil {
		return nil, err
	}

	ops, planErrs := Plan(fields, values, pages)
	for _, e := range planErrs {
		log.Printf("⚠️  Skipping field: %v", e)
	}

	out, applyErrs := s.Apply(base, ops)
	for _, e := range applyErrs {
		var se *apperrors.StampingError
		if !errors.As(e, &se) {
			return nil, e
		}
		log.Printf("⚠️  Skipping field: %v", e)
	}
	return out, nil
}
