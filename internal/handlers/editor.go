// editor.go exposes the field placement editor to the operator dashboard.
//
// POST   /api/v1/editor/sessions            - Upload a PDF and start placing fields
// GET    /api/v1/editor/sessions/:id        - Current editor state
// GET    /api/v1/editor/sessions/:id/file   - The uploaded PDF, for the viewer
// POST   /api/v1/editor/sessions/:id/events - Apply one UI event
// POST   /api/v1/editor/sessions/:id/save   - Save the layout as a template
// DELETE /api/v1/editor/sessions/:id        - Cancel
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Shimizu-Technology/sign-tools-api/internal/middleware"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/editor"
	pdfservice "github.com/Shimizu-Technology/sign-tools-api/internal/services/pdf"
)

// CreateEditorSession starts an editor over an uploaded PDF.
func (h *Handler) CreateEditorSession(c *gin.Context) {
	user := middleware.GetUser(c)

	data, header, ok := h.readPDFUpload(c)
	if !ok {
		return
	}

	info, err := pdfservice.Inspect(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_pdf",
			Message: "The PDF could not be read: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	s := editor.NewSession(uuid.New().String(), user.ID, header.Filename, data, info.PageCount)
	h.Editors.Put(s.ID, s)
	c.JSON(http.StatusCreated, s.Snapshot())
}

// editorSession loads the session from the path, hiding other operators'
// sessions behind a 404.
func (h *Handler) editorSession(c *gin.Context) (*editor.Session, bool) {
	s, ok := h.Editors.Get(c.Param("id"))
	if !ok || s.OwnerID != middleware.GetUser(c).ID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Editor session not found or expired",
			Code:    http.StatusNotFound,
		})
		return nil, false
	}
	return s, true
}

// GetEditorSession returns the editor state.
func (h *Handler) GetEditorSession(c *gin.Context) {
	s, ok := h.editorSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// EditorSessionFile returns the uploaded PDF.
func (h *Handler) EditorSessionFile(c *gin.Context) {
	s, ok := h.editorSession(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/pdf", s.PDF())
}

// ApplyEditorEvent applies one click, drag, key or toolbar event. A
// rejected event leaves the state unchanged.
func (h *Handler) ApplyEditorEvent(c *gin.Context) {
	s, ok := h.editorSession(c)
	if !ok {
		return
	}

	var ev editor.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, "Invalid event: "+err.Error())
		return
	}

	snap, err := s.Apply(ev)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SaveEditorSession persists the placed fields and the PDF as a template
// and ends the session.
func (h *Handler) SaveEditorSession(c *gin.Context) {
	s, ok := h.editorSession(c)
	if !ok {
		return
	}

	var req models.SaveEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A template name is required")
		return
	}

	fields, err := s.Fields()
	if err != nil {
		respondError(c, err)
		return
	}

	user := middleware.GetUser(c)
	tpl, err := h.Templates.Save(c.Request.Context(), req.Name, fields, s.PDF(), &user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Editors.Delete(s.ID)
	c.JSON(http.StatusCreated, tpl)
}

// DeleteEditorSession cancels the editor without saving.
func (h *Handler) DeleteEditorSession(c *gin.Context) {
	s, ok := h.editorSession(c)
	if !ok {
		return
	}
	h.Editors.Delete(s.ID)
	c.Status(http.StatusNoContent)
}
