// signing.go handles the public signing flow. Anyone with a template's link
// can fill it in; these routes sit behind the per-IP rate limiter instead of
// operator auth.
//
// GET    /api/v1/sign/:templateId                    - Template for the landing page
// POST   /api/v1/sign/:templateId/sessions           - Start filling
// GET    /api/v1/sign/sessions/:sid                  - Current state
// PUT    /api/v1/sign/sessions/:sid/values           - Set one value
// POST   /api/v1/sign/sessions/:sid/next             - Advance to the next field
// POST   /api/v1/sign/sessions/:sid/signature        - Store a drawn or generated signature
// POST   /api/v1/sign/sessions/:sid/capture          - Open the pad or QR capture
// DELETE /api/v1/sign/sessions/:sid/capture          - Close it, keeping values
// GET    /api/v1/sign/sessions/:sid/events           - SSE stream of state changes
// POST   /api/v1/sign/sessions/:sid/submit           - Validate and store the signed document
package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/fill"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/signature"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/worker"
)

// heartbeatInterval keeps idle SSE connections (and their session) alive.
const heartbeatInterval = 25 * time.Second

// signingSession is a fill session plus the goroutine feeding it captures
// from other devices. ctx ends when the session is evicted; cancel ends it.
type signingSession struct {
	*fill.Session
	ctx    context.Context
	cancel context.CancelFunc
}

// GetSigningTemplate returns what the landing page needs to render a template.
func (h *Handler) GetSigningTemplate(c *gin.Context) {
	tpl, err := h.Templates.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PublicTemplate{
		ID:      tpl.ID,
		Name:    tpl.Name,
		Fields:  tpl.Fields,
		FileURL: h.Templates.FileURL(tpl),
	})
}

// CreateSigningSession starts filling a template and subscribes the session
// to signatures captured on a second device.
func (h *Handler) CreateSigningSession(c *gin.Context) {
	tpl, err := h.Templates.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &signingSession{Session: fill.NewSession(uuid.New().String(), *tpl), ctx: ctx, cancel: cancel}
	h.Signings.Put(s.ID, s)
	go h.deliverCaptures(ctx, s.Session)

	c.JSON(http.StatusCreated, s.Snapshot())
}

// deliverCaptures is the message handler for the second-device channel:
// each inserted capture row for the template is fetched and merged.
func (h *Handler) deliverCaptures(ctx context.Context, s *fill.Session) {
	if h.Inserts == nil {
		return
	}
	events := h.Inserts.OnInsert(ctx, "signature_captures", s.Template.ID)
	captures := make(chan fill.Capture)

	go func() {
		defer close(captures)
		for ev := range events {
			capture, err := h.Store.GetSignatureCapture(ctx, ev.ID)
			if err != nil {
				log.Printf("⚠️  Failed to load signature capture %s: %v", ev.ID, err)
				continue
			}
			select {
			case captures <- fill.Capture{Values: models.FormValues{capture.Label: capture.Value}}:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.Run(ctx, captures)
}

func (h *Handler) signing(c *gin.Context) (*signingSession, bool) {
	s, ok := h.Signings.Get(c.Param("sid"))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Signing session not found or expired",
			Code:    http.StatusNotFound,
		})
		return nil, false
	}
	return s, true
}

// GetSigningSession returns the session state.
func (h *Handler) GetSigningSession(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// SetSigningValue records the value for one field.
func (h *Handler) SetSigningValue(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}

	var req models.SetValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A field label is required")
		return
	}

	if err := s.SetValue(req.Label, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// NextSigningField advances to the next field. The response carries the
// page the viewer should scroll to.
func (h *Handler) NextSigningField(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}

	page, err := s.Next()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scroll_to_page": page, "session": s.Snapshot()})
}

// SaveSignature turns a client image, freehand strokes or a typed name into
// a signature and stores it. With an open capture and no explicit label the
// capture's field is filled and the capture closes; otherwise the value
// goes to the named or current field.
func (h *Handler) SaveSignature(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}

	var req models.SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid signature request: "+err.Error())
		return
	}

	value, err := signatureValue(req)
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := s.StoreSignature(req.Label, value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// signatureValue renders the request into a PNG data URI.
func signatureValue(req models.SignatureRequest) (string, error) {
	if req.DataURI != "" {
		if _, err := signature.DecodeDataURI(req.DataURI); err != nil {
			return "", apperrors.Validation("signature must be a PNG or JPEG data URI: " + err.Error())
		}
		return req.DataURI, nil
	}

	canvas := signature.NewCanvas(req.Width, req.Height)
	switch {
	case len(req.Strokes) > 0:
		strokes := make([][]signature.Point, len(req.Strokes))
		for i, stroke := range req.Strokes {
			strokes[i] = make([]signature.Point, len(stroke))
			for j, p := range stroke {
				strokes[i][j] = signature.Point{X: p.X, Y: p.Y}
			}
		}
		canvas.DrawStrokes(strokes)
		if canvas.Empty() {
			return "", apperrors.Validation("the signature is empty")
		}
	case strings.TrimSpace(req.Name) != "":
		if err := canvas.Generate(req.Name); err != nil {
			return "", err
		}
	default:
		return "", apperrors.Validation("provide data_uri, strokes or name")
	}
	return canvas.Save()
}

// OpenSigningCapture opens the pad or QR capture for a signature field.
func (h *Handler) OpenSigningCapture(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}

	var req models.OpenCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mode must be 'pad' or 'qr'")
		return
	}

	if _, err := s.OpenCapture(fill.CaptureMode(req.Mode), req.Label); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// CancelSigningCapture closes the capture. Values already collected stay.
func (h *Handler) CancelSigningCapture(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}
	s.CancelCapture()
	c.JSON(http.StatusOK, s.Snapshot())
}

// SigningEvents streams a snapshot after every change, including values
// that arrive from a second device.
//
// Go Pattern: c.Stream calls the step function until it returns false or
// the client disconnects; each step blocks on the next update.
func (h *Handler) SigningEvents(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}

	updates, stop := s.Watch()
	defer stop()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.SSEvent("snapshot", s.Snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-s.ctx.Done():
			return false
		case snap := <-updates:
			c.SSEvent("snapshot", snap)
			return true
		case <-heartbeat.C:
			// Touch the session so an open stream keeps it from expiring.
			if _, ok := h.Signings.Get(s.ID); !ok {
				return false
			}
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

// SubmitSigningSession validates and stores the signed document, then
// queues a render so the first view is served from the cache. The
// template owner's webhooks hear about it.
func (h *Handler) SubmitSigningSession(c *gin.Context) {
	s, ok := h.signing(c)
	if !ok {
		return
	}

	id, err := s.Submit(c.Request.Context(), h.Store)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.Worker.Submit(worker.Job{ID: id, Type: worker.JobRender}); err != nil {
		log.Printf("⚠️  Render for document %s not queued: %v", id, err)
	}

	viewURL := "/view/" + id
	h.Webhooks.NotifyEvent(context.WithoutCancel(c.Request.Context()), s.Template.OwnerID, models.EventDocumentSigned, models.DocumentEvent{
		DocumentID:   id,
		TemplateID:   s.Template.ID,
		TemplateName: s.Template.Name,
		ViewURL:      viewURL,
	})

	c.JSON(http.StatusCreated, models.SubmitResponse{
		DocumentID: id,
		ViewURL:    viewURL,
	})
}
