// webhooks.go handles the operator's webhook endpoints.
//
// POST   /api/v1/webhooks            - Register an endpoint (secret shown once)
// GET    /api/v1/webhooks            - List endpoints
// PATCH  /api/v1/webhooks/:id        - Pause or resume
// DELETE /api/v1/webhooks/:id        - Remove
// GET    /api/v1/webhooks/deliveries - Recent delivery attempts
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/middleware"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// CreateWebhook registers a new webhook endpoint.
func (h *Handler) CreateWebhook(c *gin.Context) {
	user := middleware.GetUser(c)

	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A URL and at least one event are required")
		return
	}

	wh, err := h.Webhooks.Register(c.Request.Context(), user.ID, req.URL, req.Events)
	if err != nil {
		respondError(c, err)
		return
	}

	// The secret is only returned here, like a password.
	c.JSON(http.StatusCreated, gin.H{
		"id":         wh.ID,
		"url":        wh.URL,
		"events":     wh.Events,
		"secret":     wh.Secret,
		"active":     wh.Active,
		"created_at": wh.CreatedAt,
	})
}

// ListWebhooks returns the operator's webhooks.
func (h *Handler) ListWebhooks(c *gin.Context) {
	list, err := h.Webhooks.List(c.Request.Context(), middleware.GetUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Webhook{}
	}
	c.JSON(http.StatusOK, models.ListResponse[models.Webhook]{Data: list, Total: len(list)})
}

// UpdateWebhook toggles a webhook's active state.
func (h *Handler) UpdateWebhook(c *gin.Context) {
	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active field is required (true/false)")
		return
	}

	if err := h.Webhooks.SetActive(c.Request.Context(), c.Param("id"), middleware.GetUser(c).ID, *req.Active); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook updated", "active": *req.Active})
}

// DeleteWebhook removes a webhook.
func (h *Handler) DeleteWebhook(c *gin.Context) {
	if err := h.Webhooks.Delete(c.Request.Context(), c.Param("id"), middleware.GetUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListWebhookDeliveries returns recent delivery attempts. ?limit caps the
// count (default 20, max 100).
func (h *Handler) ListWebhookDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	deliveries, err := h.Webhooks.Deliveries(c.Request.Context(), middleware.GetUser(c).ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if deliveries == nil {
		deliveries = []models.WebhookDelivery{}
	}
	c.JSON(http.StatusOK, models.ListResponse[models.WebhookDelivery]{Data: deliveries, Total: len(deliveries)})
}
