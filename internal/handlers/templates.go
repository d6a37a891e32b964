// templates.go handles the operator's template endpoints.
//
// GET    /api/v1/templates          - List the operator's templates
// POST   /api/v1/templates          - Upload a PDF with a ready-made field list
// GET    /api/v1/templates/:id      - Get one template
// GET    /api/v1/templates/:id/file - Download the base PDF
// DELETE /api/v1/templates/:id      - Delete a template and its PDF
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/middleware"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// ListTemplates returns the operator's templates, newest first.
func (h *Handler) ListTemplates(c *gin.Context) {
	user := middleware.GetUser(c)
	list, err := h.Store.ListTemplates(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ListResponse[models.Template]{Data: list, Total: len(list)})
}

// CreateTemplate saves an uploaded PDF with a field list given as JSON in
// the "fields" form value.
func (h *Handler) CreateTemplate(c *gin.Context) {
	user := middleware.GetUser(c)

	data, _, ok := h.readPDFUpload(c)
	if !ok {
		return
	}

	var req models.CreateTemplateRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Both 'name' and 'fields' form values are required")
		return
	}

	var fields models.Fields
	if err := json.Unmarshal([]byte(req.Fields), &fields); err != nil {
		badRequest(c, "'fields' must be a JSON array of fields: "+err.Error())
		return
	}

	tpl, err := h.Templates.Save(c.Request.Context(), req.Name, fields, data, &user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// GetTemplate returns one of the operator's templates.
func (h *Handler) GetTemplate(c *gin.Context) {
	tpl, err := h.Templates.GetOwned(c.Request.Context(), c.Param("id"), middleware.GetUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// TemplateFile streams the base PDF of one of the operator's templates.
func (h *Handler) TemplateFile(c *gin.Context) {
	ctx := c.Request.Context()
	tpl, err := h.Templates.GetOwned(ctx, c.Param("id"), middleware.GetUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := h.Templates.File(ctx, tpl)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

// DeleteTemplate removes the template row and then its PDF. Signed
// documents for the template go with it.
func (h *Handler) DeleteTemplate(c *gin.Context) {
	if err := h.Templates.Delete(c.Request.Context(), c.Param("id"), middleware.GetUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
