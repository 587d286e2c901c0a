package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type ImagesHandler struct {
	revisions *services.RevisionService
	admin     *services.AdminService
	logger    *zap.Logger
}

func NewImagesHandler(revisions *services.RevisionService, admin *services.AdminService, logger *zap.Logger) *ImagesHandler {
	return &ImagesHandler{
		revisions: revisions,
		admin:     admin,
		logger:    logger,
	}
}

// Regenerate godoc
// @Summary     Regenerate an image video
// @Description Creates the next iteration for the image with the given prompt and generates it synchronously.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       image_id path int true "Image ID"
// @Param       request body models.RegenerateRequest true "New prompt"
// @Success     200 {object} models.VideoResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Failure     502 {object} models.VideoResponse
// @Router      /admin/images/{image_id}/regenerate [post]
func (h *ImagesHandler) Regenerate(c *gin.Context) {
	imageID, ok := parseIDParam(c, "image_id")
	if !ok {
		return
	}

	var req models.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	result, err := h.revisions.Regenerate(c.Request.Context(), imageID, req.Prompt)
	if errors.Is(err, services.ErrGenerationFailed) && result != nil {
		// The failed iteration is persisted; return it with the upstream status.
		c.JSON(http.StatusBadGateway, models.NewVideoResponse(result.Video))
		return
	}
	if err != nil {
		writeError(c, "failed to regenerate video", err)
		return
	}

	h.logger.Info("video regenerated",
		zap.Uint("image_id", imageID),
		zap.Uint("video_id", result.Video.ID),
		zap.Int("iteration", result.Video.Iteration))
	c.JSON(http.StatusOK, models.NewVideoResponse(result.Video))
}

// SetImageStatus godoc
// @Summary     Override image status
// @Description Sets the status of the image's current video. Accepts pending, processing, completed or failed.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       image_id path int true "Image ID"
// @Param       request body models.ImageStatusRequest true "New status"
// @Success     200 {object} models.VideoResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /admin/images/{image_id}/status [post]
func (h *ImagesHandler) SetImageStatus(c *gin.Context) {
	imageID, ok := parseIDParam(c, "image_id")
	if !ok {
		return
	}

	var req models.ImageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	video, err := h.admin.SetImageStatus(c.Request.Context(), imageID, req.Status)
	if err != nil {
		writeError(c, "failed to set image status", err)
		return
	}
	c.JSON(http.StatusOK, models.NewVideoResponse(video))
}
