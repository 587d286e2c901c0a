package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/supabase"
)

var ErrNoFiles = errors.New("no files uploaded")

// UploadFile is one image of a batch.
type UploadFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

type SubmitBatchInput struct {
	UserID  *uint
	Package string
	AddOns  []string
	Files   []UploadFile
}

// OrderHandle identifies an accepted batch.
type OrderHandle struct {
	OrderID  uint
	Package  models.PackageTier
	ImageIDs []uint
	VideoIDs []uint
}

type IntakeConfig struct {
	Store     *database.Store
	Processor *Processor
	Runner    *Runner
	Events    EventPublisher
	Logger    *zap.Logger
}

// IntakeService accepts image batches and schedules their processing.
type IntakeService struct {
	store     *database.Store
	processor *Processor
	runner    *Runner
	events    EventPublisher
	logger    *zap.Logger
}

func NewIntakeService(cfg IntakeConfig) *IntakeService {
	s := &IntakeService{
		store:     cfg.Store,
		processor: cfg.Processor,
		runner:    cfg.Runner,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SubmitBatch validates the batch against its package, persists the order and
// one image plus queued video per file, then starts processing in the
// background. If persisting stops partway, the order and the images stored so
// far remain and the handle is returned alongside the error.
func (s *IntakeService) SubmitBatch(ctx context.Context, in SubmitBatchInput) (*OrderHandle, error) {
	if len(in.Files) == 0 {
		return nil, ErrNoFiles
	}
	tier, err := ValidatePackage(in.Package, len(in.Files))
	if err != nil {
		return nil, err
	}

	order := &models.Order{UserID: in.UserID, Package: tier}
	if len(in.AddOns) > 0 {
		raw, err := json.Marshal(in.AddOns)
		if err != nil {
			return nil, fmt.Errorf("encode add-ons: %w", err)
		}
		order.AddOns = datatypes.JSON(raw)
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	handle := &OrderHandle{OrderID: order.ID, Package: tier}
	for _, file := range in.Files {
		image := &models.UploadedImage{
			Filename:    filepath.Base(file.Filename),
			ContentType: contentTypeOf(file),
			Content:     file.Content,
		}
		video, err := s.store.CreateImageWithVideo(ctx, order, image, "")
		if err != nil {
			s.logger.Error("failed to persist image",
				zap.Uint("order_id", order.ID),
				zap.String("filename", file.Filename),
				zap.Error(err))
			return handle, fmt.Errorf("persist %s: %w", file.Filename, err)
		}
		handle.ImageIDs = append(handle.ImageIDs, image.ID)
		handle.VideoIDs = append(handle.VideoIDs, video.ID)
	}

	s.logger.Info("batch accepted",
		zap.Uint("order_id", order.ID),
		zap.String("package", string(tier)),
		zap.Int("images", len(handle.ImageIDs)))

	if err := s.events.PublishOrderEvent(order.ID, eventOrderQueued, supabase.OrderQueuedPayload(order.ID, len(handle.ImageIDs))); err != nil {
		s.logger.Warn("failed to publish order event", zap.Uint("order_id", order.ID), zap.Error(err))
	}
	if in.UserID != nil {
		notification := &models.Notification{
			UserID:  in.UserID,
			Type:    models.NotificationOrderQueued,
			Message: fmt.Sprintf("Order #%d queued with %d images", order.ID, len(handle.ImageIDs)),
		}
		if err := s.store.CreateNotification(ctx, notification); err != nil {
			s.logger.Warn("failed to record order notification", zap.Uint("order_id", order.ID), zap.Error(err))
		}
	}

	s.schedule(order.ID)
	return handle, nil
}

func (s *IntakeService) schedule(orderID uint) {
	if s.runner == nil || s.processor == nil {
		return
	}
	s.runner.Go(fmt.Sprintf("process-order-%d", orderID), func(ctx context.Context) error {
		_, err := s.processor.ProcessOrder(ctx, orderID)
		return err
	})
}

func contentTypeOf(file UploadFile) string {
	if file.ContentType != "" && file.ContentType != "application/octet-stream" {
		return file.ContentType
	}
	return http.DetectContentType(file.Content)
}
