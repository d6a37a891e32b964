// files.go serves blobs at their public URLs.
//
// GET /files/*path
package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServeFile returns a stored blob. Template PDFs are named by random UUIDs,
// which is what keeps them private to people holding a signing link.
func (h *Handler) ServeFile(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")

	data, err := h.Blobs.Download(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := "application/octet-stream"
	if strings.EqualFold(path.Ext(p), ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}
