package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"tour-video-backend/internal/config"
	"tour-video-backend/internal/models"
)

const (
	UserIDKey   = "user_id"
	IdentityKey = "identity"
)

// Identity is the verified caller attached to the request context.
type Identity struct {
	UserID  uint
	Email   string
	IsGuest bool
	IsAdmin bool
}

// CurrentIdentity returns the caller set by one of the auth middlewares.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// AuthMiddleware requires a valid HS256 bearer token.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "missing authorization header", "")
			return
		}

		identity, status, msg, detail := authenticate(cfg, authHeader)
		if status != 0 {
			abort(c, status, msg, detail)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a token is present and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		identity, status, msg, detail := authenticate(cfg, authHeader)
		if status != 0 {
			abort(c, status, msg, detail)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "user id not found", "")
			return
		}
		if !identity.IsAdmin {
			abort(c, http.StatusForbidden, "admin access required", "")
			return
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, identity Identity) {
	c.Set(IdentityKey, identity)
	c.Set(UserIDKey, identity.UserID)
}

func abort(c *gin.Context, status int, msg, detail string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg, Message: detail})
}

func authenticate(cfg *config.Config, authHeader string) (Identity, int, string, string) {
	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Identity{}, http.StatusUnauthorized, "invalid authorization header format", ""
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return Identity{}, http.StatusUnauthorized, "empty token", ""
	}

	// Try URL decoding in case the token was URL-encoded
	if decoded, err := url.QueryUnescape(tokenString); err == nil && decoded != tokenString {
		tokenString = decoded
	}

	if len(strings.Split(tokenString, ".")) != 3 {
		return Identity{}, http.StatusUnauthorized, "invalid token format", "JWT token must have 3 parts separated by dots"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		if cfg.JWTSecret == "" {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		var msg string
		switch {
		case strings.Contains(err.Error(), "signature is invalid"):
			msg = "token signature is invalid - check JWT secret"
		case strings.Contains(err.Error(), "token is expired"):
			msg = "token has expired"
		case strings.Contains(err.Error(), "could not JSON decode"):
			msg = "token is malformed"
		default:
			msg = err.Error()
		}
		return Identity{}, http.StatusUnauthorized, "invalid token", msg
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, http.StatusUnauthorized, "invalid token claims", ""
	}

	// Extract user id from "sub" claim
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, http.StatusUnauthorized, "missing user id in token", ""
	}

	identity := Identity{UserID: uint(userID)}
	identity.Email, _ = claims["email"].(string)
	identity.IsGuest, _ = claims["guest"].(bool)
	role, _ := claims["role"].(string)
	identity.IsAdmin = role == "admin" || (identity.Email != "" && cfg.IsAdminEmail(identity.Email))
	return identity, 0, "", ""
}

// SignToken issues an HS256 token carrying the identity. Used by local tooling
// and tests; production tokens come from the auth provider.
func SignToken(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", identity.UserID),
		"guest": identity.IsGuest,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if identity.Email != "" {
		claims["email"] = identity.Email
	}
	if identity.IsAdmin {
		claims["role"] = "admin"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
