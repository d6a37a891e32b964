// errors.go maps service errors onto the API's error envelope.
//
// Go Pattern: Services return typed errors; this is the one place that
// decides status codes, so handlers just call respondError(c, err).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/database"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/editor"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/fill"
)

// errorFor builds the response for err. Storage causes are logged and never
// sent to clients.
func errorFor(err error) models.ErrorResponse {
	var ve *apperrors.ValidationError
	var pw *apperrors.PartialWriteError
	var se *apperrors.StorageError

	switch {
	case errors.As(err, &ve):
		return models.ErrorResponse{
			Error:   "validation_error",
			Message: ve.Error(),
			Code:    http.StatusBadRequest,
			Fields:  ve.Fields,
		}
	case errors.Is(err, apperrors.ErrNotFound):
		return models.ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found",
			Code:    http.StatusNotFound,
		}
	case errors.Is(err, database.ErrEmailTaken):
		return models.ErrorResponse{
			Error:   "email_taken",
			Message: "An account with this email already exists",
			Code:    http.StatusConflict,
		}
	case errors.Is(err, editor.ErrDragInProgress),
		errors.Is(err, editor.ErrNoSelection),
		errors.Is(err, fill.ErrNoNextField),
		errors.Is(err, fill.ErrNoCapture):
		return models.ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
			Code:    http.StatusConflict,
		}
	case errors.As(err, &pw):
		log.Printf("❌ %v", pw)
		return models.ErrorResponse{
			Error:   "storage_error",
			Message: "Saving failed. Please try again.",
			Code:    http.StatusInternalServerError,
		}
	case errors.As(err, &se):
		log.Printf("❌ %v", se)
		return models.ErrorResponse{
			Error:   "storage_error",
			Message: "A storage operation failed. Please try again.",
			Code:    http.StatusInternalServerError,
		}
	default:
		log.Printf("❌ Unexpected error: %v", err)
		return models.ErrorResponse{
			Error:   "server_error",
			Message: "Something went wrong. Please try again.",
			Code:    http.StatusInternalServerError,
		}
	}
}

func respondError(c *gin.Context, err error) {
	resp := errorFor(err)
	c.JSON(resp.Code, resp)
}

// badRequest reports a request that could not be bound.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
