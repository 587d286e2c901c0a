package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type FilesHandler struct {
	status *services.StatusService
}

func NewFilesHandler(status *services.StatusService) *FilesHandler {
	return &FilesHandler{status: status}
}

// DownloadCenter godoc
// @Summary     List archived videos
// @Description Returns every archived final video of the caller.
// @Tags        files
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.DownloadCenterResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /download-center [get]
func (h *FilesHandler) DownloadCenter(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	videos, err := h.status.DownloadCenter(c.Request.Context(), userID)
	if err != nil {
		writeError(c, "failed to list videos", err)
		return
	}
	if videos == nil {
		videos = []models.FinalVideo{}
	}
	c.JSON(http.StatusOK, models.DownloadCenterResponse{Videos: videos})
}
