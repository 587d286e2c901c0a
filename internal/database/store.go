package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"tour-video-backend/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUserMismatch  = errors.New("video user does not match order user")
	ErrInvalidStatus = errors.New("invalid video status")
)

var nonTerminal = []string{string(models.VideoQueued), string(models.VideoProcessing)}

// Store wraps the gorm handle with the queries the pipeline needs.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of the store that stamps rows using clock.
func (s *Store) WithClock(clock func() time.Time) *Store {
	return &Store{db: s.db, now: clock}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Create(order).Error
}

func (s *Store) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	return orders, err
}

// TryBeginProcessing atomically claims the order for a processing run. It
// returns false when a run is active or has already finished.
func (s *Store) TryBeginProcessing(ctx context.Context, orderID uint) (bool, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND is_processing = ? AND processed_at IS NULL", orderID, false).
		Updates(map[string]any{
			"is_processing":         true,
			"processing_started_at": now,
			"updated_at":            now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) FinishProcessing(ctx context.Context, orderID uint) error {
	now := s.now()
	return s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"is_processing": false,
			"processed_at":  now,
			"updated_at":    now,
		}).Error
}

// ReleaseProcessing drops an active claim without marking the order
// processed, so a later delivery can claim it again.
func (s *Store) ReleaseProcessing(ctx context.Context, orderID uint) error {
	return s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND processed_at IS NULL", orderID).
		Updates(map[string]any{
			"is_processing": false,
			"updated_at":    s.now(),
		}).Error
}

// Images and videos

// CreateImageWithVideo persists an image and its first queued video in one
// transaction. The video inherits the order's user.
func (s *Store) CreateImageWithVideo(ctx context.Context, order *models.Order, image *models.UploadedImage, prompt string) (*models.Video, error) {
	image.OrderID = order.ID
	video := &models.Video{
		Iteration: 1,
		UserID:    order.UserID,
		Prompt:    prompt,
		Status:    models.VideoQueued,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(image).Error; err != nil {
			return err
		}
		video.ImageID = image.ID
		return tx.Create(video).Error
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

func (s *Store) GetImage(ctx context.Context, id uint) (*models.UploadedImage, error) {
	var image models.UploadedImage
	if err := s.db.WithContext(ctx).First(&image, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &image, nil
}

func (s *Store) ListImagesByOrder(ctx context.Context, orderID uint) ([]models.UploadedImage, error) {
	var images []models.UploadedImage
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&images).Error
	return images, err
}

func (s *Store) UpdateImagePrompt(ctx context.Context, imageID uint, prompt string) error {
	return s.db.WithContext(ctx).Model(&models.UploadedImage{}).
		Where("id = ?", imageID).
		Update("prompt", prompt).Error
}

func (s *Store) SetVideoPrompt(ctx context.Context, videoID uint, prompt string) error {
	return s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ?", videoID).
		Updates(map[string]any{"prompt": prompt, "updated_at": s.now()}).Error
}

// SetImageVideo mirrors a succeeded video onto its image row.
func (s *Store) SetImageVideo(ctx context.Context, imageID uint, videoURL, videoPath string) error {
	updates := map[string]any{
		"video_generated_at": s.now(),
	}
	if videoURL != "" {
		updates["video_url"] = videoURL
	}
	if videoPath != "" {
		updates["video_path"] = videoPath
	}
	return s.db.WithContext(ctx).Model(&models.UploadedImage{}).
		Where("id = ?", imageID).
		Updates(updates).Error
}

func (s *Store) GetVideo(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	if err := s.db.WithContext(ctx).First(&video, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &video, nil
}

func (s *Store) FindVideoByJobID(ctx context.Context, jobID string) (*models.Video, error) {
	var video models.Video
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id DESC").First(&video).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &video, nil
}

// LatestVideoForImage returns the current iteration for an image.
func (s *Store) LatestVideoForImage(ctx context.Context, imageID uint) (*models.Video, error) {
	var video models.Video
	err := s.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("iteration DESC, id DESC").
		First(&video).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &video, nil
}

// LatestVideosForOrder returns the current video of every image in the order,
// keyed by image id. Images without any video are absent from the map.
func (s *Store) LatestVideosForOrder(ctx context.Context, orderID uint) (map[uint]models.Video, error) {
	var videos []models.Video
	err := s.db.WithContext(ctx).
		Joins("JOIN uploaded_images ON uploaded_images.id = videos.image_id").
		Where("uploaded_images.order_id = ?", orderID).
		Order("videos.iteration ASC, videos.id ASC").
		Find(&videos).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[uint]models.Video, len(videos))
	for _, v := range videos {
		latest[v.ImageID] = v
	}
	return latest, nil
}

// CreateIteration inserts video as the next iteration of its image. The
// iteration is computed inside the transaction; the unique (image_id,
// iteration) index rejects a concurrent duplicate.
func (s *Store) CreateIteration(ctx context.Context, video *models.Video) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var image models.UploadedImage
		if err := tx.First(&image, video.ImageID).Error; err != nil {
			return notFound(err)
		}
		var order models.Order
		if err := tx.First(&order, image.OrderID).Error; err != nil {
			return notFound(err)
		}
		if !sameUser(video.UserID, order.UserID) {
			return ErrUserMismatch
		}

		var maxIteration int
		if err := tx.Model(&models.Video{}).
			Where("image_id = ?", video.ImageID).
			Select("COALESCE(MAX(iteration), 0)").
			Scan(&maxIteration).Error; err != nil {
			return err
		}
		video.Iteration = maxIteration + 1
		if video.Status == "" {
			video.Status = models.VideoQueued
		}
		return tx.Create(video).Error
	})
}

func sameUser(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MarkVideoProcessing records a submitted job. Only a queued or processing
// row is touched.
func (s *Store) MarkVideoProcessing(ctx context.Context, videoID uint, jobID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND status IN ?", videoID, nonTerminal).
		Updates(map[string]any{
			"status":     string(models.VideoProcessing),
			"job_id":     jobID,
			"updated_at": s.now(),
		})
	return res.RowsAffected == 1, res.Error
}

// TerminalUpdate describes the final state of a video.
type TerminalUpdate struct {
	Status        models.VideoStatus
	JobID         string
	VideoURL      string
	VideoPath     string
	FailureReason string
}

// CompleteVideo moves a non-terminal video to a terminal state and, in the
// same transaction, appends the notification. It reports false when the
// video was already terminal, in which case nothing is written.
func (s *Store) CompleteVideo(ctx context.Context, videoID uint, update TerminalUpdate, notification *models.Notification) (bool, error) {
	if !update.Status.Terminal() {
		return false, ErrInvalidStatus
	}

	updates := map[string]any{
		"status":     string(update.Status),
		"updated_at": s.now(),
	}
	if update.JobID != "" {
		updates["job_id"] = update.JobID
	}
	if update.VideoURL != "" {
		updates["video_url"] = update.VideoURL
	}
	if update.VideoPath != "" {
		updates["video_path"] = update.VideoPath
	}
	if update.FailureReason != "" {
		updates["failure_reason"] = update.FailureReason
	}

	transitioned := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Video{}).
			Where("id = ? AND status IN ?", videoID, nonTerminal).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		transitioned = true
		if notification == nil {
			return nil
		}
		return tx.Create(notification).Error
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

// OverrideVideoStatus sets the status unconditionally. Used by admins.
func (s *Store) OverrideVideoStatus(ctx context.Context, videoID uint, status models.VideoStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ?", videoID).
		Updates(map[string]any{"status": string(status), "updated_at": s.now()}).Error
}

// CopyImages clones the images of one order into another, each with a fresh
// queued first iteration.
func (s *Store) CopyImages(ctx context.Context, from uint, to *models.Order) ([]models.Video, error) {
	var created []models.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var images []models.UploadedImage
		if err := tx.Where("order_id = ?", from).Order("id ASC").Find(&images).Error; err != nil {
			return err
		}
		for _, src := range images {
			image := models.UploadedImage{
				OrderID:     to.ID,
				Filename:    src.Filename,
				ContentType: src.ContentType,
				Content:     src.Content,
				Prompt:      src.Prompt,
			}
			if err := tx.Create(&image).Error; err != nil {
				return err
			}
			prompt := ""
			if src.Prompt != nil {
				prompt = *src.Prompt
			}
			video := models.Video{
				ImageID:   image.ID,
				Iteration: 1,
				UserID:    to.UserID,
				Prompt:    prompt,
				Status:    models.VideoQueued,
			}
			if err := tx.Create(&video).Error; err != nil {
				return err
			}
			created = append(created, video)
		}
		return nil
	})
	return created, err
}

// Feedback, archive and notifications

func (s *Store) CreateFeedback(ctx context.Context, feedback *models.Feedback) error {
	return s.db.WithContext(ctx).Create(feedback).Error
}

// SaveFinalVideo records an archived artifact, replacing any earlier row for
// the same video.
func (s *Store) SaveFinalVideo(ctx context.Context, final *models.FinalVideo) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_path", "video_url"}),
	}).Create(final).Error
}

func (s *Store) ListFinalVideosByUser(ctx context.Context, userID uint) ([]models.FinalVideo, error) {
	var finals []models.FinalVideo
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&finals).Error
	return finals, err
}

func (s *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return s.db.WithContext(ctx).Create(notification).Error
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

func (s *Store) ListNotificationsByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Admin queries

// VideoRow is a video joined with its image, order and owner.
type VideoRow struct {
	models.Video
	OrderID   uint
	Filename  string
	UserEmail *string
	UserName  *string
	IsGuest   *bool
}

func (s *Store) ListRecentVideos(ctx context.Context, limit int) ([]VideoRow, error) {
	var rows []VideoRow
	err := s.db.WithContext(ctx).
		Table("videos").
		Select("videos.*, uploaded_images.order_id AS order_id, uploaded_images.filename AS filename, " +
			"users.email AS user_email, users.name AS user_name, users.is_guest AS is_guest").
		Joins("JOIN uploaded_images ON uploaded_images.id = videos.image_id").
		Joins("LEFT JOIN users ON users.id = videos.user_id").
		Order("videos.created_at DESC, videos.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (s *Store) CountVideosByStatus(ctx context.Context) (map[models.VideoStatus]int64, error) {
	type statusCount struct {
		Status models.VideoStatus
		Count  int64
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&models.Video{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[models.VideoStatus]int64{
		models.VideoQueued:     0,
		models.VideoProcessing: 0,
		models.VideoSucceeded:  0,
		models.VideoFailed:     0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Totals holds row counts for the admin dashboard.
type Totals struct {
	Users  int64 `json:"users"`
	Orders int64 `json:"orders"`
	Videos int64 `json:"videos"`
}

func (s *Store) CountTotals(ctx context.Context) (Totals, error) {
	var t Totals
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&t.Users).Error; err != nil {
		return Totals{}, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.Order{}).Count(&t.Orders).Error; err != nil {
		return Totals{}, fmt.Errorf("count orders: %w", err)
	}
	if err := db.Model(&models.Video{}).Count(&t.Videos).Error; err != nil {
		return Totals{}, fmt.Errorf("count videos: %w", err)
	}
	return t, nil
}
