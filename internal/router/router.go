// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/handlers"
	"github.com/Shimizu-Technology/sign-tools-api/internal/middleware"
)

// Setup creates and configures the Gin router with all routes.
func Setup(h *handlers.Handler, users middleware.UserLookup, rateLimiter *middleware.RateLimiter, jwtSecret string, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(allowedOrigins))

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)

	r.GET("/api/docs", h.ServeSwaggerUI)
	r.GET("/api/docs/openapi.yaml", h.ServeOpenAPISpec)

	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)

	// Template PDFs, linked from the signing page
	r.GET("/files/*path", h.ServeFile)

	// --- Signing and document view (link-based, rate limited per IP) ---
	public := r.Group("/api/v1")
	public.Use(rateLimiter.RateLimit())
	{
		public.GET("/sign/:templateId", h.GetSigningTemplate)
		public.POST("/sign/:templateId/sessions", h.CreateSigningSession)
		public.POST("/sign/:templateId/mobile-signature", h.SubmitMobileSignature)

		public.GET("/sign/sessions/:sid", h.GetSigningSession)
		public.PUT("/sign/sessions/:sid/values", h.SetSigningValue)
		public.POST("/sign/sessions/:sid/next", h.NextSigningField)
		public.POST("/sign/sessions/:sid/signature", h.SaveSignature)
		public.POST("/sign/sessions/:sid/capture", h.OpenSigningCapture)
		public.DELETE("/sign/sessions/:sid/capture", h.CancelSigningCapture)
		public.GET("/sign/sessions/:sid/events", h.SigningEvents)
		public.POST("/sign/sessions/:sid/submit", h.SubmitSigningSession)

		public.GET("/documents/:id", h.GetDocument)
		public.GET("/documents/:id/pdf", h.DocumentPDF)
	}

	// --- Operator routes (JWT) ---
	operator := r.Group("/api/v1")
	operator.Use(middleware.JWTAuth(users, jwtSecret))
	{
		operator.GET("/auth/me", h.GetMe)

		operator.GET("/templates", h.ListTemplates)
		operator.POST("/templates", h.CreateTemplate)
		operator.GET("/templates/:id", h.GetTemplate)
		operator.GET("/templates/:id/file", h.TemplateFile)
		operator.DELETE("/templates/:id", h.DeleteTemplate)

		operator.POST("/editor/sessions", h.CreateEditorSession)
		operator.GET("/editor/sessions/:id", h.GetEditorSession)
		operator.GET("/editor/sessions/:id/file", h.EditorSessionFile)
		operator.POST("/editor/sessions/:id/events", h.ApplyEditorEvent)
		operator.POST("/editor/sessions/:id/save", h.SaveEditorSession)
		operator.DELETE("/editor/sessions/:id", h.DeleteEditorSession)

		operator.GET("/documents", h.ListDocuments)

		operator.POST("/webhooks", h.CreateWebhook)
		operator.GET("/webhooks", h.ListWebhooks)
		operator.GET("/webhooks/deliveries", h.ListWebhookDeliveries)
		operator.PATCH("/webhooks/:id", h.UpdateWebhook)
		operator.DELETE("/webhooks/:id", h.DeleteWebhook)
	}

	return r
}
