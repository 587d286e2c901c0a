package services

import (
	"context"
	"fmt"

	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
)

// AggregateStatus folds the current video states of an order into one order
// status. Precedence: all succeeded, then any processing, then any failed.
// Everything else, including an empty order, is submitted.
func AggregateStatus(states []models.VideoStatus) models.OrderStatus {
	if len(states) == 0 {
		return models.OrderSubmitted
	}

	allSucceeded := true
	anyProcessing := false
	anyFailed := false
	for _, s := range states {
		switch s {
		case models.VideoSucceeded:
		case models.VideoProcessing:
			anyProcessing = true
			allSucceeded = false
		case models.VideoFailed:
			anyFailed = true
			allSucceeded = false
		default:
			allSucceeded = false
		}
	}

	switch {
	case allSucceeded:
		return models.OrderCompleted
	case anyProcessing:
		return models.OrderProcessing
	case anyFailed:
		return models.OrderFailed
	default:
		return models.OrderSubmitted
	}
}

// OrderView is the read model for one order.
type OrderView struct {
	Order  models.Order
	Status models.OrderStatus
	Images []ImageView
}

type ImageView struct {
	Image models.UploadedImage
	Video *models.Video
}

// StatusService answers read-only status queries.
type StatusService struct {
	store *database.Store
}

func NewStatusService(store *database.Store) *StatusService {
	return &StatusService{store: store}
}

// OrderStatus aggregates the current iteration of every image in the order.
func (s *StatusService) OrderStatus(ctx context.Context, orderID uint) (models.OrderStatus, error) {
	view, err := s.OrderView(ctx, orderID)
	if err != nil {
		return "", err
	}
	return view.Status, nil
}

func (s *StatusService) OrderView(ctx context.Context, orderID uint) (*OrderView, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, order)
}

func (s *StatusService) buildView(ctx context.Context, order *models.Order) (*OrderView, error) {
	images, err := s.store.ListImagesByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	latest, err := s.store.LatestVideosForOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("latest videos: %w", err)
	}

	view := &OrderView{Order: *order, Images: make([]ImageView, 0, len(images))}
	states := make([]models.VideoStatus, 0, len(images))
	for _, img := range images {
		iv := ImageView{Image: img}
		if v, ok := latest[img.ID]; ok {
			video := v
			iv.Video = &video
			states = append(states, v.Status)
		} else {
			states = append(states, models.VideoQueued)
		}
		view.Images = append(view.Images, iv)
	}
	view.Status = AggregateStatus(states)
	return view, nil
}

// UserOrders lists the user's orders, newest first, with their status.
func (s *StatusService) UserOrders(ctx context.Context, userID uint) ([]OrderView, error) {
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		view, err := s.buildView(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// DownloadCenter lists the user's archived videos.
func (s *StatusService) DownloadCenter(ctx context.Context, userID uint) ([]models.FinalVideo, error) {
	return s.store.ListFinalVideosByUser(ctx, userID)
}

// OwnsOrder reports whether userID owns the order.
func OwnsOrder(order *models.Order, userID uint) bool {
	return order.UserID != nil && *order.UserID == userID
}

