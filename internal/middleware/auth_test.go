package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/config"
	"tour-video-backend/internal/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       testSecret,
		AdminEmailsList: []string{"boss@example.com"},
	}
}

func serve(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "invalid-token").Code)

	wrongKey, err := middleware.SignToken("other-secret", middleware.Identity{UserID: 1}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(router, wrongKey).Code)

	expired, err := middleware.SignToken(testSecret, middleware.Identity{UserID: 1}, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(router, expired).Code)
}

func TestAuthMiddleware_NonNumericSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-123"})
	tokenString, _ := token.SignedString([]byte(testSecret))

	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, tokenString).Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokenString, err := middleware.SignToken(testSecret, middleware.Identity{UserID: 42, IsGuest: true}, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", func(c *gin.Context) {
		userID, exists := c.Get(middleware.UserIDKey)
		assert.True(t, exists)
		assert.Equal(t, uint(42), userID)

		identity, ok := middleware.CurrentIdentity(c)
		assert.True(t, ok)
		assert.True(t, identity.IsGuest)
		assert.False(t, identity.IsAdmin)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	assert.Equal(t, http.StatusOK, serve(router, tokenString).Code)
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.OptionalAuth(testConfig()))
	router.GET("/test", func(c *gin.Context) {
		_, ok := middleware.CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	w := serve(router, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(router, "a.b.c").Code)
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()), middleware.AdminOnly())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	member, _ := middleware.SignToken(testSecret, middleware.Identity{UserID: 1, Email: "someone@example.com"}, time.Hour)
	assert.Equal(t, http.StatusForbidden, serve(router, member).Code)

	byEmail, _ := middleware.SignToken(testSecret, middleware.Identity{UserID: 2, Email: "Boss@Example.com"}, time.Hour)
	assert.Equal(t, http.StatusOK, serve(router, byEmail).Code)

	byRole, _ := middleware.SignToken(testSecret, middleware.Identity{UserID: 3, IsAdmin: true}, time.Hour)
	assert.Equal(t, http.StatusOK, serve(router, byRole).Code)
}
