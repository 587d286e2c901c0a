package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/services"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Feed godoc
// @Summary     Admin feed
// @Description Latest videos and notifications with counts by status and overall totals
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Success     200 {object} services.AdminFeed
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /admin/feed [get]
func (h *AdminHandler) Feed(c *gin.Context) {
	feed, err := h.admin.Feed(c.Request.Context())
	if err != nil {
		writeError(c, "failed to build admin feed", err)
		return
	}
	c.JSON(http.StatusOK, feed)
}
