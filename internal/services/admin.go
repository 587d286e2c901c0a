package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
)

const (
	adminFeedVideos        = 200
	adminFeedNotifications = 20
)

// AdminVideo is one row of the admin feed.
type AdminVideo struct {
	ID            uint      `json:"id"`
	ImageID       uint      `json:"image_id"`
	OrderID       uint      `json:"order_id"`
	Filename      string    `json:"filename"`
	Iteration     int       `json:"iteration"`
	Status        string    `json:"status"`
	Prompt        string    `json:"prompt"`
	JobID         *string   `json:"job_id"`
	VideoURL      *string   `json:"video_url"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	UserCode      string    `json:"user_code"`
	UserEmail     *string   `json:"user_email"`
	CreatedAt     time.Time `json:"created_at"`
}

type AdminFeed struct {
	Videos        []AdminVideo          `json:"videos"`
	Notifications []models.Notification `json:"notifications"`
	Counts        map[string]int64      `json:"counts"`
	Totals        database.Totals       `json:"totals"`
}

// AdminService builds the operator view and applies manual overrides.
type AdminService struct {
	store  *database.Store
	logger *zap.Logger
}

func NewAdminService(store *database.Store, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{store: store, logger: logger}
}

// Feed returns recent videos and notifications with counts by status. Status
// names use the admin vocabulary.
func (s *AdminService) Feed(ctx context.Context) (*AdminFeed, error) {
	rows, err := s.store.ListRecentVideos(ctx, adminFeedVideos)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	notifications, err := s.store.ListNotifications(ctx, adminFeedNotifications)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	counts, err := s.store.CountVideosByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}
	totals, err := s.store.CountTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("count totals: %w", err)
	}

	feed := &AdminFeed{
		Videos:        make([]AdminVideo, 0, len(rows)),
		Notifications: notifications,
		Counts:        make(map[string]int64, len(counts)),
		Totals:        totals,
	}
	for status, n := range counts {
		feed.Counts[status.External()] = n
	}
	for _, row := range rows {
		feed.Videos = append(feed.Videos, AdminVideo{
			ID:            row.ID,
			ImageID:       row.ImageID,
			OrderID:       row.OrderID,
			Filename:      row.Filename,
			Iteration:     row.Iteration,
			Status:        row.Status.External(),
			Prompt:        row.Prompt,
			JobID:         row.JobID,
			VideoURL:      row.VideoURL,
			FailureReason: row.FailureReason,
			UserCode:      userCode(row),
			UserEmail:     row.UserEmail,
			CreatedAt:     row.CreatedAt,
		})
	}
	return feed, nil
}

func userCode(row database.VideoRow) string {
	if row.UserID == nil {
		return ""
	}
	user := models.User{ID: *row.UserID}
	if row.IsGuest != nil {
		user.IsGuest = *row.IsGuest
	}
	return user.Code()
}

// SetImageStatus overrides the status of the image's current video. A first
// iteration is created when the image has none.
func (s *AdminService) SetImageStatus(ctx context.Context, imageID uint, status string) (*models.Video, error) {
	internal, err := models.ParseExternalStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrInvalidStatus, err)
	}

	image, err := s.store.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	video, err := s.store.LatestVideoForImage(ctx, image.ID)
	if errors.Is(err, database.ErrNotFound) {
		order, err := s.store.GetOrder(ctx, image.OrderID)
		if err != nil {
			return nil, err
		}
		prompt := ""
		if image.Prompt != nil {
			prompt = *image.Prompt
		}
		video = &models.Video{ImageID: image.ID, UserID: order.UserID, Prompt: prompt, Status: internal}
		if err := s.store.CreateIteration(ctx, video); err != nil {
			return nil, fmt.Errorf("create iteration: %w", err)
		}
	} else if err != nil {
		return nil, err
	} else if err := s.store.OverrideVideoStatus(ctx, video.ID, internal); err != nil {
		return nil, err
	}

	s.logger.Info("video status overridden",
		zap.Uint("image_id", image.ID),
		zap.Uint("video_id", video.ID),
		zap.String("status", string(internal)))
	return s.store.GetVideo(ctx, video.ID)
}
