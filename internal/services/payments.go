package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
)

const AddonReorder = "reorder"

var ErrForbidden = errors.New("order belongs to another user")

// PaymentEvent is a "payment succeeded" notice. It may be delivered more than
// once.
type PaymentEvent struct {
	OrderID   uint
	UserID    *uint
	AddonType string
}

type PaymentConfig struct {
	Store     *database.Store
	Processor *Processor
	Runner    *Runner
	Logger    *zap.Logger
}

// PaymentService reacts to confirmed payments.
type PaymentService struct {
	store     *database.Store
	processor *Processor
	runner    *Runner
	logger    *zap.Logger
}

func NewPaymentService(cfg PaymentConfig) *PaymentService {
	s := &PaymentService{
		store:     cfg.Store,
		processor: cfg.Processor,
		runner:    cfg.Runner,
		logger:    cfg.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateReorder opens a new order that repeats orderID for the same user. The
// images are copied once the reorder is paid.
func (s *PaymentService) CreateReorder(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	parent, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !OwnsOrder(parent, userID) {
		return nil, ErrForbidden
	}

	order := &models.Order{
		UserID:        parent.UserID,
		Package:       parent.Package,
		AddOns:        parent.AddOns,
		ParentOrderID: &parent.ID,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create reorder: %w", err)
	}
	s.logger.Info("reorder created", zap.Uint("order_id", order.ID), zap.Uint("parent_order_id", parent.ID))
	return order, nil
}

// HandlePaymentSucceeded starts processing for a paid reorder. Other add-on
// payments are only logged. The order is claimed before its images are copied,
// so a redelivered confirmation finds the claim taken and does nothing.
func (s *PaymentService) HandlePaymentSucceeded(ctx context.Context, event PaymentEvent) error {
	order, err := s.store.GetOrder(ctx, event.OrderID)
	if err != nil {
		return err
	}
	if event.UserID != nil && order.UserID != nil && *event.UserID != *order.UserID {
		s.logger.Warn("payment user does not own order",
			zap.Uint("order_id", order.ID), zap.Uint("user_id", *event.UserID))
		return ErrForbidden
	}

	if event.AddonType != AddonReorder {
		s.logger.Info("payment recorded",
			zap.Uint("order_id", order.ID), zap.String("addon_type", event.AddonType))
		return nil
	}

	started, err := s.store.TryBeginProcessing(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("begin processing order %d: %w", order.ID, err)
	}
	if !started {
		guardRejectionsTotal.Inc()
		s.logger.Info("duplicate payment confirmation ignored",
			zap.Uint("order_id", order.ID), zap.String("addon_type", event.AddonType))
		return nil
	}

	if order.ParentOrderID != nil {
		if err := s.copyParentImages(ctx, order); err != nil {
			if rerr := s.store.ReleaseProcessing(context.WithoutCancel(ctx), order.ID); rerr != nil {
				s.logger.Error("failed to release order claim", zap.Uint("order_id", order.ID), zap.Error(rerr))
			}
			return err
		}
	}

	if s.runner == nil {
		return s.processor.RunClaimed(ctx, order.ID)
	}
	s.runner.Go(fmt.Sprintf("process-order-%d", order.ID), func(ctx context.Context) error {
		return s.processor.RunClaimed(ctx, order.ID)
	})
	return nil
}

func (s *PaymentService) copyParentImages(ctx context.Context, order *models.Order) error {
	images, err := s.store.ListImagesByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if len(images) > 0 {
		return nil
	}
	videos, err := s.store.CopyImages(ctx, *order.ParentOrderID, order)
	if err != nil {
		return fmt.Errorf("copy images: %w", err)
	}
	s.logger.Info("reorder images copied",
		zap.Uint("order_id", order.ID),
		zap.Uint("parent_order_id", *order.ParentOrderID),
		zap.Int("videos", len(videos)))
	return nil
}
