package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

const (
	defaultPollIntervalSeconds = 30
	defaultPollMaxChecks       = 30
)

type PollHandler struct {
	reconciler *services.Reconciler
	runner     *services.Runner
	logger     *zap.Logger
}

func NewPollHandler(reconciler *services.Reconciler, runner *services.Runner, logger *zap.Logger) *PollHandler {
	return &PollHandler{
		reconciler: reconciler,
		runner:     runner,
		logger:     logger,
	}
}

// CheckStatus godoc
// @Summary     Poll a generation job
// @Description Starts a background poll of the job. The first terminal state seen is applied to the matching video.
// @Tags        runway
// @Produce     json
// @Security    Bearer
// @Param       task_id query string true "Job ID"
// @Param       poll_interval_seconds query int false "Seconds between checks" default(30)
// @Param       max_checks query int false "Maximum number of checks" default(30)
// @Success     202 {object} models.PollStartedResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /runway/check-status [post]
func (h *PollHandler) CheckStatus(c *gin.Context) {
	taskID := strings.TrimSpace(c.Query("task_id"))
	if taskID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "task_id is required"})
		return
	}

	interval, err := positiveQuery(c, "poll_interval_seconds", defaultPollIntervalSeconds)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid poll_interval_seconds", Message: err.Error()})
		return
	}
	maxChecks, err := positiveQuery(c, "max_checks", defaultPollMaxChecks)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid max_checks", Message: err.Error()})
		return
	}

	h.runner.Go("poll-"+taskID, func(ctx context.Context) error {
		status, err := h.reconciler.Poll(ctx, taskID, maxChecks, time.Duration(interval)*time.Second)
		if errors.Is(err, services.ErrPollInProgress) {
			h.logger.Info("poll already running", zap.String("job_id", taskID))
			return nil
		}
		if err != nil {
			return err
		}
		h.logger.Info("poll finished", zap.String("job_id", taskID), zap.String("status", string(status)))
		return nil
	})

	c.JSON(http.StatusAccepted, models.PollStartedResponse{
		Status:              "started",
		TaskID:              taskID,
		PollIntervalSeconds: interval,
		MaxChecks:           maxChecks,
	})
}

func positiveQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
