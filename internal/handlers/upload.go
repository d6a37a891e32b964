// upload.go reads PDF uploads for the editor and template endpoints.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	pdfservice "github.com/Shimizu-Technology/sign-tools-api/internal/services/pdf"
)

// multipartOverhead leaves room for form fields and boundaries on top of
// the file itself.
const multipartOverhead = 1 << 20

// readPDFUpload reads the "file" form part. It writes the error response and
// returns ok=false when the upload is missing, too large or not a PDF.
func (h *Handler) readPDFUpload(c *gin.Context) (data []byte, header *multipart.FileHeader, ok bool) {
	limitMB := h.MaxUploadBytes >> 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			tooLarge(c, limitMB)
			return nil, nil, false
		}
		badRequest(c, fmt.Sprintf("No PDF file provided. Upload a file with the field name 'file'. Max size: %dMB.", limitMB))
		return nil, nil, false
	}
	defer file.Close()

	if header.Size > h.MaxUploadBytes {
		tooLarge(c, limitMB)
		return nil, nil, false
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_file_type",
			Message: fmt.Sprintf("Unsupported file format '%s'. Only .pdf files are accepted.", ext),
			Code:    http.StatusBadRequest,
		})
		return nil, nil, false
	}

	// The PDF libraries need random access, so the file is read whole.
	data, err = io.ReadAll(file)
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return nil, nil, false
	}

	if !pdfservice.ValidatePDF(data) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_pdf",
			Message: "The uploaded file does not appear to be a valid PDF",
			Code:    http.StatusBadRequest,
		})
		return nil, nil, false
	}
	return data, header, true
}

func tooLarge(c *gin.Context, limitMB int64) {
	c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
		Error:   "file_too_large",
		Message: fmt.Sprintf("The PDF must be %dMB or smaller.", limitMB),
		Code:    http.StatusRequestEntityTooLarge,
	})
}
