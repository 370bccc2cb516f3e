package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/quiz_go_server/internal/pkg/jwt"
	"github.com/qs3c/quiz_go_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret-key-for-middleware"

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func newToken(t *testing.T, userID int64, secret string, hours int) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, secret, hours)
	require.NoError(t, err)
	return token
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "authenticated": ok})
	})
	return router
}

func TestAuth_Success(t *testing.T) {
	router := authRouter(Auth(testJWTSecret))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+newToken(t, 123, testJWTSecret, 24))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":123,"authenticated":true}`, w.Body.String())
}

func TestAuth_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", newToken(t, 123, testJWTSecret, 24)},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + newToken(t, 123, "different-secret", 24)},
		{"expired", "Bearer " + newToken(t, 123, testJWTSecret, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := authRouter(Auth(testJWTSecret))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			resp := parseResponse(t, w)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, response.CodeAuthFailed, resp.Code)
		})
	}
}

func TestAuth_ExpiredTokenMessage(t *testing.T) {
	router := authRouter(Auth(testJWTSecret))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+newToken(t, 123, testJWTSecret, 0))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "登录已过期", parseResponse(t, w).Message)
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"valid token", "Bearer " + newToken(t, 456, testJWTSecret, 24), `{"user_id":456,"authenticated":true}`},
		{"no token", "", `{"user_id":0,"authenticated":false}`},
		{"invalid token", "Bearer invalid", `{"user_id":0,"authenticated":false}`},
		{"bad format", "Basic abc", `{"user_id":0,"authenticated":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := authRouter(OptionalAuth(testJWTSecret))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.expected, w.Body.String())
		})
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetUserID(c)
	assert.False(t, ok)

	c.Set(UserIDKey, "123")
	_, ok = GetUserID(c)
	assert.False(t, ok)

	c.Set(UserIDKey, int64(789))
	id, ok := GetUserID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(789), id)
}
