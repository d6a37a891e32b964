// capture.go receives signatures drawn on a second device (the phone that
// scanned the QR code on the signing page).
//
// POST /api/v1/sign/:templateId/mobile-signature
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/signature"
)

// SubmitMobileSignature stores a capture row. The insert trigger announces
// it, and every live signing session for the template merges it.
func (h *Handler) SubmitMobileSignature(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.MobileSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A signature data URI is required")
		return
	}

	tpl, err := h.Templates.Get(ctx, c.Param("templateId"))
	if err != nil {
		respondError(c, err)
		return
	}

	label, err := captureLabel(tpl.Fields, req.Label)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := signature.DecodeDataURI(req.DataURI); err != nil {
		respondError(c, apperrors.Validation("signature must be a PNG or JPEG data URI: "+err.Error(), label))
		return
	}

	capture := &models.SignatureCapture{TemplateID: tpl.ID, Label: label, Value: req.DataURI}
	if err := h.Store.CreateSignatureCapture(ctx, capture); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          capture.ID,
		"template_id": capture.TemplateID,
		"label":       capture.Label,
		"created_at":  capture.CreatedAt,
	})
}

// captureLabel picks the field a capture fills: the named signature field,
// or the template's first one.
func captureLabel(fields models.Fields, label string) (string, error) {
	for _, f := range fields {
		if f.Type != models.FieldSignature {
			continue
		}
		if label == "" || f.Label == label {
			return f.Label, nil
		}
	}
	if label != "" {
		return "", apperrors.Validation("not a signature field", label)
	}
	return "", apperrors.Validation("this template has no signature field")
}
