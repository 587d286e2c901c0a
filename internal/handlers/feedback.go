package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type FeedbackHandler struct {
	store     *database.Store
	revisions *services.RevisionService
	logger    *zap.Logger
}

func NewFeedbackHandler(store *database.Store, revisions *services.RevisionService, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		store:     store,
		revisions: revisions,
		logger:    logger,
	}
}

// SubmitFeedback godoc
// @Summary     Submit feedback on a video
// @Description Improves the video's prompt with the feedback and generates a new iteration synchronously.
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.FeedbackRequest true "Feedback"
// @Success     200 {object} models.FeedbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Failure     502 {object} models.FeedbackResponse
// @Router      /feedback [post]
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	video, err := h.store.GetVideo(c.Request.Context(), req.VideoID)
	if err != nil {
		writeError(c, "failed to load video", err)
		return
	}
	if !canModify(c, video.UserID) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "access denied"})
		return
	}

	result, err := h.revisions.SubmitFeedback(c.Request.Context(), req.VideoID, req.FeedbackText)
	if err != nil && !(errors.Is(err, services.ErrGenerationFailed) && result != nil) {
		writeError(c, "failed to submit feedback", err)
		return
	}

	resp := models.FeedbackResponse{
		NewPrompt: result.Video.Prompt,
		Video:     models.NewVideoResponse(result.Video),
	}
	if result.Feedback != nil {
		resp.FeedbackID = result.Feedback.ID
		resp.NewPrompt = result.Feedback.NewPrompt
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
