package middleware_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vedant7151/Invoice-Generator/internal/api/middleware"
	"github.com/vedant7151/Invoice-Generator/internal/auth"
)

const secret = "middleware-secret"

func authEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", middleware.AuthMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, middleware.UserID(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := authEngine()
	token, err := auth.GenerateJWT("user_1", secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "user_1"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "user_1"},
		{"missing", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Bearer {token}"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("allow list", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.CORSMiddleware([]string{"https://app.test"}))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://app.test")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "https://app.test", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://evil.test")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.CORSMiddleware(nil))
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.BodyLimit(16))
	r.POST("/x", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	// Unknown length: the reader enforces the cap.
	req := httptest.NewRequest(http.MethodPost, "/x", io.NopCloser(bytes.NewReader(bytes.Repeat([]byte("a"), 64))))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
