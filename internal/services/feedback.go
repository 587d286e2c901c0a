package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/vision"
)

var (
	ErrPromptRequired   = errors.New("prompt is required")
	ErrFeedbackRequired = errors.New("feedback text is required")
	ErrGenerationFailed = errors.New("video generation failed")
)

// RevisionResult is the unit created by a regenerate or feedback call.
type RevisionResult struct {
	Video    *models.Video
	Feedback *models.Feedback
	Status   models.VideoStatus
	Reason   string
}

type RevisionConfig struct {
	Store      *database.Store
	Deriver    PromptDeriver
	Driver     *Driver
	Reconciler *Reconciler
	Logger     *zap.Logger
}

// RevisionService creates new iterations for an image and generates them
// synchronously.
type RevisionService struct {
	store      *database.Store
	deriver    PromptDeriver
	driver     *Driver
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewRevisionService(cfg RevisionConfig) *RevisionService {
	s := &RevisionService{
		store:      cfg.Store,
		deriver:    cfg.Deriver,
		driver:     cfg.Driver,
		reconciler: cfg.Reconciler,
		logger:     cfg.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Regenerate creates the next iteration of the image with a new prompt.
func (s *RevisionService) Regenerate(ctx context.Context, imageID uint, prompt string) (*RevisionResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrPromptRequired
	}

	image, err := s.store.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, image.OrderID)
	if err != nil {
		return nil, err
	}

	video := &models.Video{ImageID: image.ID, UserID: order.UserID, Prompt: prompt}
	if parent, err := s.store.LatestVideoForImage(ctx, image.ID); err == nil {
		video.ParentVideoID = &parent.ID
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if err := s.store.CreateIteration(ctx, video); err != nil {
		return nil, fmt.Errorf("create iteration: %w", err)
	}
	if err := s.store.UpdateImagePrompt(ctx, image.ID, prompt); err != nil {
		s.logger.Warn("failed to save image prompt", zap.Uint("image_id", image.ID), zap.Error(err))
	}

	s.logger.Info("regenerating video",
		zap.Uint("image_id", image.ID),
		zap.Uint("video_id", video.ID),
		zap.Int("iteration", video.Iteration))
	return s.generate(ctx, image, video, nil)
}

// SubmitFeedback improves the prompt of videoID with the feedback and
// generates a child iteration from it.
func (s *RevisionService) SubmitFeedback(ctx context.Context, videoID uint, text string) (*RevisionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrFeedbackRequired
	}

	parent, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	image, err := s.store.GetImage(ctx, parent.ImageID)
	if err != nil {
		return nil, err
	}

	improved := vision.MergeFeedback(parent.Prompt, text)
	if s.deriver != nil {
		improved = s.deriver.Improve(ctx, parent.Prompt, text)
	}

	feedback := &models.Feedback{VideoID: parent.ID, FeedbackText: text, NewPrompt: improved}
	if err := s.store.CreateFeedback(ctx, feedback); err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}

	video := &models.Video{
		ImageID:       parent.ImageID,
		UserID:        parent.UserID,
		Prompt:        improved,
		ParentVideoID: &parent.ID,
	}
	if err := s.store.CreateIteration(ctx, video); err != nil {
		return nil, fmt.Errorf("create iteration: %w", err)
	}

	s.logger.Info("generating feedback revision",
		zap.Uint("parent_video_id", parent.ID),
		zap.Uint("video_id", video.ID),
		zap.Int("iteration", video.Iteration))
	return s.generate(ctx, image, video, feedback)
}

func (s *RevisionService) generate(ctx context.Context, image *models.UploadedImage, video *models.Video, feedback *models.Feedback) (*RevisionResult, error) {
	outcome := s.driver.Generate(ctx, GenerateRequest{
		Image:  image.Content,
		Prompt: video.Prompt,
		Wait:   true,
		OnSubmitted: func(ctx context.Context, jobID string) {
			s.reconciler.Submitted(ctx, video, jobID)
		},
	})
	status, err := s.reconciler.Apply(ctx, video, outcome)
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	current, err := s.store.GetVideo(ctx, video.ID)
	if err != nil {
		return nil, err
	}
	result := &RevisionResult{Video: current, Feedback: feedback, Status: status, Reason: outcome.Reason}
	if status == models.VideoFailed {
		return result, fmt.Errorf("%w: %s", ErrGenerationFailed, outcome.Reason)
	}
	return result, nil
}
