// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, Data, Stream)
// - Middleware data (c.Get/c.Set)
//
// Related handlers hang off one Handler struct that holds shared dependencies.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/database"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/blob"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/editor"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/render"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/rendercache"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/sessions"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/templates"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/webhook"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/worker"
)

// Store is the persistence the handlers need. *database.DB implements it;
// tests use an in-memory fake.
type Store interface {
	HealthCheck(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	ListTemplates(ctx context.Context, ownerID string) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	CreateSignedDocument(ctx context.Context, templateID string, values models.FormValues) (string, error)
	GetSignedDocument(ctx context.Context, id string) (*models.SignedDocumentWithTemplate, error)
	ListSignedDocuments(ctx context.Context, ownerID string) ([]models.SignedDocumentSummary, error)

	CreateSignatureCapture(ctx context.Context, c *models.SignatureCapture) error
	GetSignatureCapture(ctx context.Context, id string) (*models.SignatureCapture, error)
}

// InsertSubscriber delivers row inserts. *database.InsertListener implements it.
type InsertSubscriber interface {
	OnInsert(ctx context.Context, table, templateID string) <-chan database.InsertEvent
}

// Jobs is the background worker pool.
type Jobs interface {
	Submit(job worker.Job) error
	WorkerCount() int
}

// Deps are the dependencies NewHandler wires together.
type Deps struct {
	Store    Store
	Blobs    *blob.Store
	Renderer *render.Renderer
	Worker   Jobs
	Cache    *rendercache.Cache // nil when REDIS_URL is unset
	Inserts  InsertSubscriber   // nil disables second-device delivery
	Webhooks *webhook.Service

	JWTSecret      string
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
type Handler struct {
	Store     Store
	Blobs     *blob.Store
	Templates *templates.Service
	Renderer  *render.Renderer
	Worker    Jobs
	Cache     *rendercache.Cache
	Inserts   InsertSubscriber
	Webhooks  *webhook.Service

	// In-memory interactive sessions, expired after SessionTTL of inactivity.
	Editors  *sessions.Store[*editor.Session]
	Signings *sessions.Store[*signingSession]

	JWTSecret      string
	MaxUploadBytes int64
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(d Deps) *Handler {
	return &Handler{
		Store:     d.Store,
		Blobs:     d.Blobs,
		Templates: templates.New(d.Store, d.Blobs),
		Renderer:  d.Renderer,
		Worker:    d.Worker,
		Cache:     d.Cache,
		Inserts:   d.Inserts,
		Webhooks:  d.Webhooks,
		Editors: sessions.New(d.SessionTTL, func(_ string, s *editor.Session) {
			s.Close()
		}),
		Signings: sessions.New(d.SessionTTL, func(_ string, s *signingSession) {
			s.cancel()
		}),
		JWTSecret:      d.JWTSecret,
		MaxUploadBytes: d.MaxUploadBytes,
	}
}

// Close ends every interactive session.
func (h *Handler) Close() {
	h.Editors.Close()
	h.Signings.Close()
}

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := "healthy"
	if err := h.Store.HealthCheck(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	cacheStatus := "disabled"
	if h.Cache.Enabled() {
		cacheStatus = "healthy"
		if err := h.Cache.Ping(ctx); err != nil {
			cacheStatus = "unhealthy: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:      "ok",
		Version:     "1.0.0",
		Database:    dbStatus,
		Workers:     h.Worker.WorkerCount(),
		RenderCache: cacheStatus,
	})
}
