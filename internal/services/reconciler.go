package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/runway"
	"tour-video-backend/internal/supabase"
)

var ErrPollInProgress = errors.New("job is already being polled")

// NormalizeJobStatus maps a remote job state onto the internal lifecycle.
// The second result is false for states it does not recognize.
func NormalizeJobStatus(raw string) (models.VideoStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded", "success", "completed":
		return models.VideoSucceeded, true
	case "failed", "cancelled", "canceled", "error":
		return models.VideoFailed, true
	case "pending", "throttled", "running", "processing", "queued", "in_progress":
		return models.VideoProcessing, true
	}
	return "", false
}

// JobUpdate is a status report for a remote job, pushed or pulled.
type JobUpdate struct {
	JobID   string
	Status  string
	Output  json.RawMessage
	Failure string
}

// WebhookResult tells the caller what a callback did.
type WebhookResult struct {
	Matched bool
	VideoID uint
	Status  models.VideoStatus
}

type ReconcilerConfig struct {
	Store    *database.Store
	Archiver *Archiver
	API      VideoAPI
	Mode     GenerationMode
	Events   EventPublisher
	Locker   JobLocker
	Sleep    func(context.Context, time.Duration) error
	Logger   *zap.Logger
}

// Reconciler owns every transition of a video after submission.
type Reconciler struct {
	store    *database.Store
	archiver *Archiver
	api      VideoAPI
	mode     GenerationMode
	events   EventPublisher
	locker   JobLocker
	sleep    func(context.Context, time.Duration) error
	logger   *zap.Logger
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		store:    cfg.Store,
		archiver: cfg.Archiver,
		api:      cfg.API,
		mode:     cfg.Mode,
		events:   cfg.Events,
		locker:   cfg.Locker,
		sleep:    cfg.Sleep,
		logger:   cfg.Logger,
	}
	if r.mode == "" {
		r.mode = ModeLive
	}
	if r.events == nil {
		r.events = nopPublisher{}
	}
	if r.locker == nil {
		r.locker = NewMemoryLocker()
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.archiver == nil {
		r.archiver = NewArchiver(ArchiverConfig{Store: cfg.Store, Logger: r.logger})
	}
	return r
}

// Apply records a driver outcome against the video. It returns the status the
// video holds afterwards.
func (r *Reconciler) Apply(ctx context.Context, video *models.Video, outcome Outcome) (models.VideoStatus, error) {
	switch outcome.Status {
	case models.VideoProcessing:
		if outcome.JobID == "" {
			return video.Status, nil
		}
		ok, err := r.store.MarkVideoProcessing(ctx, video.ID, outcome.JobID)
		if err != nil {
			return video.Status, fmt.Errorf("mark processing: %w", err)
		}
		if !ok {
			return r.currentStatus(ctx, video.ID)
		}
		return models.VideoProcessing, nil
	case models.VideoSucceeded:
		return r.succeed(ctx, video, outcome)
	case models.VideoFailed:
		return r.fail(ctx, video, outcome)
	default:
		return video.Status, nil
	}
}

// Submitted records the remote job handle and moves the video to processing,
// so callbacks and polls can find it while the driver is still waiting.
func (r *Reconciler) Submitted(ctx context.Context, video *models.Video, jobID string) {
	if _, err := r.Apply(ctx, video, Outcome{Status: models.VideoProcessing, JobID: jobID}); err != nil {
		r.logger.Warn("failed to record submitted job",
			zap.Uint("video_id", video.ID), zap.String("job_id", jobID), zap.Error(err))
	}
}

func (r *Reconciler) currentStatus(ctx context.Context, videoID uint) (models.VideoStatus, error) {
	current, err := r.store.GetVideo(ctx, videoID)
	if err != nil {
		return "", err
	}
	return current.Status, nil
}

func (r *Reconciler) succeed(ctx context.Context, video *models.Video, outcome Outcome) (models.VideoStatus, error) {
	current, err := r.store.GetVideo(ctx, video.ID)
	if err != nil {
		return "", err
	}
	if current.Status.Terminal() {
		r.logger.Info("video already final, ignoring success",
			zap.Uint("video_id", video.ID), zap.String("status", string(current.Status)))
		return current.Status, nil
	}

	destination := r.archiver.Destination(ctx, current.UserID, current.ID)
	finalURL := outcome.MediaURL
	archivedPath := ""
	switch {
	case outcome.MediaURL == "":
		// no media; video_url stays unset
	case r.archiver.Enabled():
		ref, err := r.archiver.Archive(ctx, Source{URL: outcome.MediaURL}, destination)
		if err != nil {
			r.logger.Warn("archive failed, keeping generator url",
				zap.Uint("video_id", current.ID), zap.Error(err))
		} else {
			finalURL = ref
			archivedPath = destination
		}
	}

	notification := &models.Notification{
		UserID:  current.UserID,
		Type:    models.NotificationVideoCreated,
		Message: fmt.Sprintf("Video #%d succeeded%s", current.ID, jobSuffix(outcome.JobID)),
	}
	ok, err := r.store.CompleteVideo(ctx, current.ID, database.TerminalUpdate{
		Status:    models.VideoSucceeded,
		JobID:     outcome.JobID,
		VideoURL:  finalURL,
		VideoPath: archivedPath,
	}, notification)
	if err != nil {
		return "", fmt.Errorf("complete video: %w", err)
	}
	if !ok {
		return r.currentStatus(ctx, current.ID)
	}
	videoTransitionsTotal.WithLabelValues(string(models.VideoSucceeded)).Inc()

	if archivedPath != "" {
		final := &models.FinalVideo{
			UserID:      current.UserID,
			ImageID:     current.ImageID,
			VideoID:     current.ID,
			StoragePath: archivedPath,
			VideoURL:    r.archiver.DownloadURL(archivedPath, finalURL),
		}
		if err := r.store.SaveFinalVideo(ctx, final); err != nil {
			r.logger.Error("failed to record archived video", zap.Uint("video_id", current.ID), zap.Error(err))
		}
	}
	if err := r.store.SetImageVideo(ctx, current.ImageID, finalURL, archivedPath); err != nil {
		r.logger.Error("failed to mirror video onto image", zap.Uint("image_id", current.ImageID), zap.Error(err))
	}

	r.logger.Info("video succeeded",
		zap.Uint("video_id", current.ID),
		zap.String("job_id", outcome.JobID),
		zap.String("video_url", finalURL))
	r.publish(ctx, current, eventVideoSucceeded, func(orderID uint) map[string]any {
		return supabase.VideoSucceededPayload(orderID, current.ID, finalURL)
	})
	return models.VideoSucceeded, nil
}

func (r *Reconciler) fail(ctx context.Context, video *models.Video, outcome Outcome) (models.VideoStatus, error) {
	notification := &models.Notification{
		UserID:  video.UserID,
		Type:    models.NotificationVideoFailed,
		Message: fmt.Sprintf("Video #%d failed%s", video.ID, jobSuffix(outcome.JobID)),
	}
	ok, err := r.store.CompleteVideo(ctx, video.ID, database.TerminalUpdate{
		Status:        models.VideoFailed,
		JobID:         outcome.JobID,
		FailureReason: outcome.Reason,
	}, notification)
	if err != nil {
		return "", fmt.Errorf("complete video: %w", err)
	}
	if !ok {
		return r.currentStatus(ctx, video.ID)
	}
	videoTransitionsTotal.WithLabelValues(string(models.VideoFailed)).Inc()

	r.logger.Warn("video failed",
		zap.Uint("video_id", video.ID),
		zap.String("job_id", outcome.JobID),
		zap.String("reason", outcome.Reason))
	r.publish(ctx, video, eventVideoFailed, func(orderID uint) map[string]any {
		return supabase.VideoFailedPayload(orderID, video.ID, outcome.Reason)
	})
	return models.VideoFailed, nil
}

func (r *Reconciler) publish(ctx context.Context, video *models.Video, event string, payload func(orderID uint) map[string]any) {
	image, err := r.store.GetImage(ctx, video.ImageID)
	if err != nil {
		r.logger.Warn("event skipped, image lookup failed", zap.Uint("video_id", video.ID), zap.Error(err))
		return
	}
	body := payload(image.OrderID)
	if err := r.events.PublishOrderEvent(image.OrderID, event, body); err != nil {
		r.logger.Warn("failed to publish order event", zap.String("event", event), zap.Error(err))
	}
	if video.UserID != nil {
		if err := r.events.PublishUserEvent(*video.UserID, event, body); err != nil {
			r.logger.Warn("failed to publish user event", zap.String("event", event), zap.Error(err))
		}
	}
}

func jobSuffix(jobID string) string {
	if jobID == "" {
		return ""
	}
	return fmt.Sprintf(" (job %s)", jobID)
}

// HandleWebhook applies a pushed status report. Unknown job ids and
// unrecognized states are logged and acknowledged.
func (r *Reconciler) HandleWebhook(ctx context.Context, update JobUpdate) (WebhookResult, error) {
	if update.JobID == "" {
		r.logger.Warn("status callback without job id ignored")
		return WebhookResult{}, nil
	}

	video, err := r.store.FindVideoByJobID(ctx, update.JobID)
	if errors.Is(err, database.ErrNotFound) {
		webhookUnmatchedTotal.Inc()
		r.logger.Warn("status callback for unknown job", zap.String("job_id", update.JobID))
		return WebhookResult{}, nil
	}
	if err != nil {
		return WebhookResult{}, fmt.Errorf("find video: %w", err)
	}

	if _, known := NormalizeJobStatus(update.Status); !known {
		r.logger.Info("status callback with unrecognized state",
			zap.String("job_id", update.JobID), zap.String("status", update.Status))
		return WebhookResult{Matched: true, VideoID: video.ID, Status: video.Status}, nil
	}

	outcome := OutcomeFromTask(&runway.Task{
		ID:      update.JobID,
		Status:  update.Status,
		Output:  update.Output,
		Failure: update.Failure,
	})
	if outcome.JobID == "" {
		outcome.JobID = update.JobID
	}
	status, err := r.Apply(ctx, video, outcome)
	if err != nil {
		return WebhookResult{Matched: true, VideoID: video.ID}, err
	}
	return WebhookResult{Matched: true, VideoID: video.ID, Status: status}, nil
}

// Poll checks the job up to maxChecks times, interval apart, and applies the
// first terminal state it sees. When checks run out the video stays
// processing.
func (r *Reconciler) Poll(ctx context.Context, jobID string, maxChecks int, interval time.Duration) (models.VideoStatus, error) {
	if maxChecks <= 0 {
		maxChecks = 1
	}
	lockTTL := time.Duration(maxChecks)*interval + time.Minute
	locked, err := r.locker.TryLock(ctx, jobID, lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquire poll lock: %w", err)
	}
	if !locked {
		return models.VideoProcessing, ErrPollInProgress
	}
	defer func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx), jobID); err != nil {
			r.logger.Warn("failed to release poll lock", zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	video, err := r.store.FindVideoByJobID(ctx, jobID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("find video: %w", err)
	}
	if video == nil {
		r.logger.Warn("polling job with no matching video", zap.String("job_id", jobID))
	}

	if r.mode == ModeMock {
		if video == nil {
			return models.VideoSucceeded, nil
		}
		return r.Apply(ctx, video, Outcome{Status: models.VideoSucceeded, JobID: jobID})
	}

	for check := 1; check <= maxChecks; check++ {
		task, err := r.api.GetTask(ctx, jobID)
		if err != nil {
			r.logger.Warn("job status check failed",
				zap.String("job_id", jobID), zap.Int("check", check), zap.Error(err))
		} else if task.Terminal() {
			outcome := OutcomeFromTask(task)
			if outcome.JobID == "" {
				outcome.JobID = jobID
			}
			if video == nil {
				return outcome.Status, nil
			}
			return r.Apply(ctx, video, outcome)
		} else if video != nil && video.Status == models.VideoQueued {
			if _, err := r.Apply(ctx, video, Outcome{Status: models.VideoProcessing, JobID: jobID}); err != nil {
				r.logger.Warn("failed to mark video processing", zap.Uint("video_id", video.ID), zap.Error(err))
			}
			video.Status = models.VideoProcessing
		}

		if check < maxChecks {
			if err := r.sleep(ctx, interval); err != nil {
				return models.VideoProcessing, err
			}
		}
	}

	pollTimeoutsTotal.Inc()
	r.logger.Info("job still processing after poll budget",
		zap.String("job_id", jobID), zap.Int("checks", maxChecks))
	return models.VideoProcessing, nil
}
