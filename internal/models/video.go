package models

import (
	"fmt"
	"strings"
	"time"
)

type VideoStatus string

const (
	VideoQueued     VideoStatus = "queued"
	VideoProcessing VideoStatus = "processing"
	VideoSucceeded  VideoStatus = "succeeded"
	VideoFailed     VideoStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s VideoStatus) Terminal() bool {
	return s == VideoSucceeded || s == VideoFailed
}

func (s VideoStatus) Valid() bool {
	switch s {
	case VideoQueued, VideoProcessing, VideoSucceeded, VideoFailed:
		return true
	}
	return false
}

// externalStatus is the vocabulary exposed to admin clients.
var externalStatus = map[VideoStatus]string{
	VideoQueued:     "pending",
	VideoProcessing: "processing",
	VideoSucceeded:  "completed",
	VideoFailed:     "failed",
}

// External returns the admin-facing name for s.
func (s VideoStatus) External() string {
	if name, ok := externalStatus[s]; ok {
		return name
	}
	return string(s)
}

// ParseExternalStatus accepts either vocabulary and returns the internal status.
func ParseExternalStatus(raw string) (VideoStatus, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for internal, external := range externalStatus {
		if value == external || value == string(internal) {
			return internal, nil
		}
	}
	return "", fmt.Errorf("unknown video status %q", raw)
}

type OrderStatus string

const (
	OrderSubmitted  OrderStatus = "submitted"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
)

// Video is one generation attempt for an image. The highest Iteration per
// image is the current one; ties break on the highest ID.
type Video struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	ImageID       uint        `gorm:"not null;uniqueIndex:idx_videos_image_iteration" json:"image_id"`
	Iteration     int         `gorm:"not null;default:1;uniqueIndex:idx_videos_image_iteration" json:"iteration"`
	UserID        *uint       `gorm:"index" json:"user_id"`
	Prompt        string      `gorm:"type:text" json:"prompt"`
	JobID         *string     `gorm:"size:128;index" json:"job_id"`
	Status        VideoStatus `gorm:"size:16;not null;index" json:"status"`
	VideoURL      *string     `json:"video_url"`
	VideoPath     *string     `json:"video_path"`
	FailureReason *string     `gorm:"type:text" json:"failure_reason,omitempty"`
	ParentVideoID *uint       `json:"parent_video_id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type Feedback struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	VideoID      uint      `gorm:"index;not null" json:"video_id"`
	FeedbackText string    `gorm:"type:text;not null" json:"feedback_text"`
	NewPrompt    string    `gorm:"type:text" json:"new_prompt"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "feedback" }

// FinalVideo is an archived copy of a succeeded video in object storage.
type FinalVideo struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	ImageID     uint      `gorm:"index" json:"image_id"`
	VideoID     uint      `gorm:"uniqueIndex" json:"video_id"`
	StoragePath string    `gorm:"not null" json:"storage_path"`
	VideoURL    string    `json:"video_url"`
	CreatedAt   time.Time `json:"created_at"`
}
