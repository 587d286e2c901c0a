package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type WebhookHandler struct {
	reconciler *services.Reconciler
	logger     *zap.Logger
}

func NewWebhookHandler(reconciler *services.Reconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleRunwayWebhook godoc
// @Summary     Video generator webhook endpoint
// @Description Receives job status callbacks. The job is matched by "id" or "job_id".
// @Description Always acknowledges so the sender does not retry unknown or malformed deliveries.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       request body models.RunwayWebhookRequest true "Job status"
// @Success     200 {object} map[string]string "status"
// @Router      /webhooks/runway [post]
func (h *WebhookHandler) HandleRunwayWebhook(c *gin.Context) {
	ack := gin.H{"status": "ok"}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, ack)
		return
	}

	var req models.RunwayWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("ignoring malformed webhook", zap.Error(err), zap.Int("bytes", len(body)))
		c.JSON(http.StatusOK, ack)
		return
	}

	jobID := req.ID
	if jobID == "" {
		jobID = req.JobID
	}

	result, err := h.reconciler.HandleWebhook(c.Request.Context(), services.JobUpdate{
		JobID:   jobID,
		Status:  req.Status,
		Output:  json.RawMessage(req.Output),
		Failure: req.Failure,
	})
	if err != nil {
		h.logger.Error("failed to apply webhook", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusOK, ack)
		return
	}

	if result.Matched {
		h.logger.Info("webhook applied",
			zap.String("job_id", jobID),
			zap.Uint("video_id", result.VideoID),
			zap.String("status", string(result.Status)))
	}
	c.JSON(http.StatusOK, ack)
}
