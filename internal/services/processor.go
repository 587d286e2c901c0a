package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/supabase"
)

// PromptDeriver describes images and folds feedback into prompts. Both
// methods always return usable text.
type PromptDeriver interface {
	Derive(ctx context.Context, image []byte) string
	Improve(ctx context.Context, original, feedback string) string
}

type ProcessorConfig struct {
	Store       *database.Store
	Deriver     PromptDeriver
	Driver      *Driver
	Reconciler  *Reconciler
	Events      EventPublisher
	Concurrency int
	Logger      *zap.Logger
}

// Processor runs the generation batch for an order.
type Processor struct {
	store       *database.Store
	deriver     PromptDeriver
	driver      *Driver
	reconciler  *Reconciler
	events      EventPublisher
	concurrency int
	logger      *zap.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	p := &Processor{
		store:       cfg.Store,
		deriver:     cfg.Deriver,
		driver:      cfg.Driver,
		reconciler:  cfg.Reconciler,
		events:      cfg.Events,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
	if p.concurrency <= 0 {
		p.concurrency = 3
	}
	if p.events == nil {
		p.events = nopPublisher{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// ProcessOrder claims the order and generates a video for every queued unit.
// It returns false without doing anything when the order was already claimed
// or processed. A failing image never stops its siblings.
func (p *Processor) ProcessOrder(ctx context.Context, orderID uint) (bool, error) {
	started, err := p.store.TryBeginProcessing(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("begin processing order %d: %w", orderID, err)
	}
	if !started {
		guardRejectionsTotal.Inc()
		p.logger.Info("order already processing or processed, skipping", zap.Uint("order_id", orderID))
		return false, nil
	}
	return true, p.RunClaimed(ctx, orderID)
}

// RunClaimed runs the batch for an order the caller has already claimed with
// TryBeginProcessing, and finishes the claim when done.
func (p *Processor) RunClaimed(ctx context.Context, orderID uint) error {
	defer func() {
		if err := p.store.FinishProcessing(context.WithoutCancel(ctx), orderID); err != nil {
			p.logger.Error("failed to finish processing", zap.Uint("order_id", orderID), zap.Error(err))
		}
	}()

	images, err := p.store.ListImagesByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	latest, err := p.store.LatestVideosForOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("latest videos: %w", err)
	}

	p.logger.Info("processing order", zap.Uint("order_id", orderID), zap.Int("images", len(images)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range images {
		image := images[i]
		video, ok := latest[image.ID]
		if !ok || video.Status != models.VideoQueued {
			continue
		}
		g.Go(func() error {
			p.processUnit(gctx, &image, &video)
			return nil
		})
	}
	_ = g.Wait()

	status := p.finalStatus(ctx, orderID)
	p.logger.Info("order processing finished", zap.Uint("order_id", orderID), zap.String("status", string(status)))
	if err := p.events.PublishOrderEvent(orderID, eventOrderFinished, supabase.OrderFinishedPayload(orderID, string(status))); err != nil {
		p.logger.Warn("failed to publish order event", zap.Uint("order_id", orderID), zap.Error(err))
	}
	return nil
}

func (p *Processor) finalStatus(ctx context.Context, orderID uint) models.OrderStatus {
	latest, err := p.store.LatestVideosForOrder(ctx, orderID)
	if err != nil {
		return models.OrderSubmitted
	}
	states := make([]models.VideoStatus, 0, len(latest))
	for _, v := range latest {
		states = append(states, v.Status)
	}
	return AggregateStatus(states)
}

// processUnit drives one queued unit to whatever state the driver reports.
// Errors are logged and left in the unit's state.
func (p *Processor) processUnit(ctx context.Context, image *models.UploadedImage, video *models.Video) {
	logger := p.logger.With(zap.Uint("order_id", image.OrderID), zap.Uint("image_id", image.ID), zap.Uint("video_id", video.ID))

	prompt := p.promptFor(ctx, image, video)
	outcome := p.driver.Generate(ctx, GenerateRequest{
		Image:  image.Content,
		Prompt: prompt,
		Wait:   true,
		OnSubmitted: func(ctx context.Context, jobID string) {
			p.reconciler.Submitted(ctx, video, jobID)
		},
	})
	status, err := p.reconciler.Apply(ctx, video, outcome)
	if err != nil {
		logger.Error("failed to record generation outcome", zap.Error(err))
		return
	}
	logger.Debug("unit processed", zap.String("status", string(status)), zap.String("job_id", outcome.JobID))
}

func (p *Processor) promptFor(ctx context.Context, image *models.UploadedImage, video *models.Video) string {
	if video.Prompt != "" {
		return video.Prompt
	}

	prompt := ""
	if image.Prompt != nil && *image.Prompt != "" {
		prompt = *image.Prompt
	} else if p.deriver != nil {
		prompt = p.deriver.Derive(ctx, image.Content)
		if err := p.store.UpdateImagePrompt(ctx, image.ID, prompt); err != nil {
			p.logger.Warn("failed to save image prompt", zap.Uint("image_id", image.ID), zap.Error(err))
		}
	}
	if prompt == "" {
		return prompt
	}
	if err := p.store.SetVideoPrompt(ctx, video.ID, prompt); err != nil {
		p.logger.Warn("failed to save video prompt", zap.Uint("video_id", video.ID), zap.Error(err))
	}
	video.Prompt = prompt
	return prompt
}
