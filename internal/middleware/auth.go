// Package middleware provides HTTP middleware for the API.
//
// Go Pattern: Middleware in Go is a function that wraps an HTTP handler.
// In Gin, middleware is a gin.HandlerFunc that calls c.Next() to continue
// the chain, or c.Abort() to stop processing.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "user"

// UserLookup resolves the operator a token was issued to.
// *database.DB satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// GetUser retrieves the authenticated operator from the request context.
// Call this in handlers behind JWTAuth.
func GetUser(c *gin.Context) *models.User {
	val, exists := c.Get(string(userContextKey))
	if !exists {
		return nil
	}
	// Go Pattern: The comma-ok idiom won't panic on the wrong type.
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
		Code:    http.StatusUnauthorized,
	})
}
