// auth_test.go: unit tests for operator tokens and rate limiting.
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

const secret = "test-secret"

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTRoundTrip(t *testing.T) {
	user := &models.User{ID: "u1", Email: "op@example.com"}

	tok, err := GenerateJWT(user, secret)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "op@example.com", claims.Email)

	_, err = ParseJWT(tok, "other-secret")
	assert.Error(t, err)
}

func TestParseJWTRejectsOtherAlgorithms(t *testing.T) {
	claims := JWTClaims{UserID: "u1"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ParseJWT(tok, secret)
	assert.Error(t, err)
}

func TestJWTAuth(t *testing.T) {
	users := fakeUsers{"u1": {ID: "u1", Email: "op@example.com"}}
	valid, err := GenerateJWT(users["u1"], secret)
	require.NoError(t, err)
	ghost, err := GenerateJWT(&models.User{ID: "gone"}, secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"no header", "GET", "/", "", http.StatusUnauthorized},
		{"wrong scheme", "GET", "/", "Basic abc", http.StatusUnauthorized},
		{"bad token", "GET", "/", "Bearer nope", http.StatusUnauthorized},
		{"deleted user", "GET", "/", "Bearer " + ghost, http.StatusUnauthorized},
		{"valid header", "GET", "/", "Bearer " + valid, http.StatusOK},
		{"query token on GET", "GET", "/?access_token=" + valid, "", http.StatusOK},
		{"query token on POST", "POST", "/?access_token=" + valid, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			handler := func(c *gin.Context) {
				u := GetUser(c)
				require.NotNil(t, u)
				c.String(http.StatusOK, u.ID)
			}
			r.GET("/", JWTAuth(users, secret), handler)
			r.POST("/", JWTAuth(users, secret), handler)

			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	w := hit("10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1").Code)

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code, "buckets are per client")

	// Half an hour refills one of two tokens.
	clock = clock.Add(30 * time.Minute)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1").Code)

	clock = clock.Add(2 * time.Hour)
	rl.sweep()
	assert.Empty(t, rl.buckets)
}

func TestRateLimitDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	defer rl.Stop()

	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
