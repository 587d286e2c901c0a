package models

import "time"

const (
	NotificationVideoCreated = "video_created"
	NotificationVideoFailed  = "video_failed"
	NotificationOrderQueued  = "order_queued"
)

// Notification is append-only; only IsRead ever changes.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
