package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/auth"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/middleware"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

// callerID returns the authenticated user id, or nil for anonymous requests.
func callerID(c *gin.Context) *uint {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil
	}
	id := identity.UserID
	return &id
}

func isAdmin(c *gin.Context) bool {
	identity, ok := middleware.CurrentIdentity(c)
	return ok && identity.IsAdmin
}

// canAccess reports whether the caller may see a resource owned by ownerID.
// Resources without an owner are open to anyone holding their id.
func canAccess(c *gin.Context, ownerID *uint) bool {
	if ownerID == nil || isAdmin(c) {
		return true
	}
	caller := callerID(c)
	return caller != nil && *caller == *ownerID
}

// canModify reports whether the caller may act on a resource owned by
// ownerID. Guest-owned resources are left to admins.
func canModify(c *gin.Context, ownerID *uint) bool {
	if isAdmin(c) {
		return true
	}
	caller := callerID(c)
	return ownerID != nil && caller != nil && *caller == *ownerID
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name, Message: raw})
		return 0, false
	}
	return uint(id), true
}

func requireUser(c *gin.Context) (uint, bool) {
	id := callerID(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return 0, false
	}
	return *id, true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidPackageSize),
		errors.Is(err, services.ErrUnknownPackage),
		errors.Is(err, services.ErrNoFiles),
		errors.Is(err, database.ErrInvalidStatus),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, database.ErrUserMismatch):
		return http.StatusForbidden
	case errors.Is(err, services.ErrPollInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrPromptRequired),
		errors.Is(err, services.ErrFeedbackRequired),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, summary string, err error) {
	c.JSON(statusFor(err), models.ErrorResponse{Error: summary, Message: err.Error()})
}
