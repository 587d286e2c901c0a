package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"tour-video-backend/internal/media"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/runway"
)

// VideoAPI is the subset of the generation service client the driver uses.
type VideoAPI interface {
	HasAPIKey() bool
	CreateImageToVideo(ctx context.Context, in runway.ImageToVideoRequest) (*runway.TaskCreated, error)
	GetTask(ctx context.Context, taskID string) (*runway.Task, error)
	WaitForTask(ctx context.Context, taskID string, interval, timeout time.Duration) (*runway.Task, error)
}

type GenerationMode string

const (
	ModeMock GenerationMode = "mock"
	ModeLive GenerationMode = "live"
)

// GenerateRequest is one image-to-video submission.
type GenerateRequest struct {
	Image  []byte
	Prompt string
	// Wait blocks until the remote job is terminal or the wait budget runs out.
	Wait bool
	// OnSubmitted runs once the remote job exists, before any waiting.
	OnSubmitted func(ctx context.Context, jobID string)
}

// Outcome is the driver's verdict for one submission. MediaURL is set only on
// a live success; JobID is empty when nothing was submitted.
type Outcome struct {
	Status   models.VideoStatus
	JobID    string
	MediaURL string
	Aspect   string
	Reason   string
}

type DriverConfig struct {
	API          VideoAPI
	Mode         GenerationMode
	Model        string
	Duration     int
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Logger       *zap.Logger
}

// Driver submits images to the generation service. The mode is fixed at
// construction.
type Driver struct {
	api          VideoAPI
	mode         GenerationMode
	model        string
	duration     int
	pollInterval time.Duration
	waitTimeout  time.Duration
	logger       *zap.Logger
}

func NewDriver(cfg DriverConfig) *Driver {
	d := &Driver{
		api:          cfg.API,
		mode:         cfg.Mode,
		model:        cfg.Model,
		duration:     cfg.Duration,
		pollInterval: cfg.PollInterval,
		waitTimeout:  cfg.WaitTimeout,
		logger:       cfg.Logger,
	}
	if d.mode == "" {
		d.mode = ModeLive
	}
	if d.duration <= 0 {
		d.duration = 5
	}
	if d.pollInterval <= 0 {
		d.pollInterval = 10 * time.Second
	}
	if d.waitTimeout <= 0 {
		d.waitTimeout = 10 * time.Minute
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

func (d *Driver) Mode() GenerationMode {
	return d.mode
}

func (d *Driver) Model() string {
	return d.model
}

// APIKeyPresent reports whether live submissions have credentials.
func (d *Driver) APIKeyPresent() bool {
	return d.api != nil && d.api.HasAPIKey()
}

// Generate never returns an error; every problem becomes a failed outcome.
func (d *Driver) Generate(ctx context.Context, req GenerateRequest) Outcome {
	start := time.Now()
	outcome := d.generate(ctx, req)
	generationDuration.WithLabelValues(string(d.mode), string(outcome.Status)).Observe(time.Since(start).Seconds())
	return outcome
}

func (d *Driver) generate(ctx context.Context, req GenerateRequest) Outcome {
	info, err := media.Inspect(req.Image)
	if err != nil {
		return failed("", err.Error())
	}
	aspect := media.AspectRatio(info.Width, info.Height)

	if d.mode == ModeMock {
		return Outcome{
			Status: models.VideoSucceeded,
			JobID:  "mock-job-" + uuid.NewString(),
			Aspect: aspect,
		}
	}

	if !d.APIKeyPresent() {
		return withAspect(failed("", runway.ErrMissingAPIKey.Error()), aspect)
	}

	upload, err := media.PrepareForUpload(req.Image)
	if err != nil {
		d.logger.Warn("image optimization failed, sending original", zap.Error(err))
		upload = req.Image
	}

	created, err := d.api.CreateImageToVideo(ctx, runway.ImageToVideoRequest{
		Model:       d.model,
		PromptImage: media.DataURL(upload),
		PromptText:  req.Prompt,
		Ratio:       aspect,
		Duration:    d.duration,
	})
	if err != nil {
		d.logger.Error("video submission failed", zap.Error(err))
		return withAspect(failed("", err.Error()), aspect)
	}
	if req.OnSubmitted != nil {
		req.OnSubmitted(ctx, created.ID)
	}

	if !req.Wait {
		return Outcome{Status: models.VideoProcessing, JobID: created.ID, Aspect: aspect}
	}

	task, err := d.api.WaitForTask(ctx, created.ID, d.pollInterval, d.waitTimeout)
	if err != nil {
		if errors.Is(err, runway.ErrWaitTimeout) {
			d.logger.Info("video job still running after wait budget", zap.String("job_id", created.ID))
		} else {
			d.logger.Warn("waiting for video job failed", zap.String("job_id", created.ID), zap.Error(err))
		}
		return Outcome{Status: models.VideoProcessing, JobID: created.ID, Aspect: aspect}
	}

	return withAspect(OutcomeFromTask(task), aspect)
}

// OutcomeFromTask maps a terminal or in-flight task onto an outcome. A
// success without any usable output is a failure with no job handle.
func OutcomeFromTask(task *runway.Task) Outcome {
	status, _ := NormalizeJobStatus(task.Status)
	switch status {
	case models.VideoSucceeded:
		url := task.OutputURL()
		if url == "" {
			return failed("", "job succeeded without output")
		}
		return Outcome{Status: models.VideoSucceeded, JobID: task.ID, MediaURL: url}
	case models.VideoFailed:
		reason := task.Failure
		if reason == "" {
			reason = fmt.Sprintf("job %s", task.Status)
		}
		return Outcome{Status: models.VideoFailed, JobID: task.ID, Reason: reason}
	default:
		return Outcome{Status: models.VideoProcessing, JobID: task.ID}
	}
}

func failed(jobID, reason string) Outcome {
	return Outcome{Status: models.VideoFailed, JobID: jobID, Reason: reason}
}

func withAspect(o Outcome, aspect string) Outcome {
	o.Aspect = aspect
	return o
}
