package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/auth"
	"tour-video-backend/internal/models"
)

type AuthHandler struct {
	reset *auth.ResetService
}

func NewAuthHandler(reset *auth.ResetService) *AuthHandler {
	return &AuthHandler{reset: reset}
}

// ForgotPassword godoc
// @Summary     Request a password reset
// @Description Sends a single-use reset link. Unknown addresses get the same response.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.ForgotPasswordRequest true "Account email"
// @Success     202 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Router      /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, "failed to request reset", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// ResetPassword godoc
// @Summary     Reset password
// @Description Consumes a reset token and sets the new password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.ResetPasswordRequest true "Token and new password"
// @Success     200 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.reset.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeError(c, "failed to reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}
