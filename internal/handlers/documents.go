// documents.go serves signed documents.
//
// GET /api/v1/documents             - List documents signed on the operator's templates
// GET /api/v1/documents/:id         - Document record with its template
// GET /api/v1/documents/:id/pdf     - Stamped PDF (?download=1 for an attachment)
//
// The record and PDF are reachable by anyone holding the document link,
// like the template's signing link.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/middleware"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// ListDocuments returns summaries of documents signed on the operator's
// templates, newest first.
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.Store.ListSignedDocuments(c.Request.Context(), middleware.GetUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ListResponse[models.SignedDocumentSummary]{Data: docs, Total: len(docs)})
}

// GetDocument returns a signed document with its template.
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.Renderer.Document(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DocumentPDF returns the template PDF with every value stamped on it.
// Fields that cannot be drawn are skipped; the rest of the document still
// renders.
func (h *Handler) DocumentPDF(c *gin.Context) {
	pdf, doc, err := h.Renderer.RenderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	disposition := "inline"
	if c.Query("download") == "1" || c.Query("download") == "true" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, signedFilename(doc.Template.Name, time.Now())))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// signedFilename names a download "<template>_signed_<M-D-YYYY>.pdf".
func signedFilename(templateName string, day time.Time) string {
	name := sanitizeFilename(templateName)
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("%s_signed_%s.pdf", name, day.Format("1-2-2006"))
}

// sanitizeFilename removes characters that aren't safe for filenames.
// Go Pattern: Keep it simple - replace unsafe characters with hyphens
// and trim the result. This only feeds the Content-Disposition header.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	name = strings.TrimSpace(name)

	// Limit length without splitting a UTF-8 sequence.
	if r := []rune(name); len(r) > 100 {
		name = strings.TrimSpace(string(r[:100]))
	}

	return name
}
