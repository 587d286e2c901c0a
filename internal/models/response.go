package models

import (
	"encoding/json"
	"time"
)

// RawJSON is an opaque JSON value kept as received.
type RawJSON = json.RawMessage

type UploadResponse struct {
	OrderID uint        `json:"order_id"`
	Package PackageTier `json:"package"`
	AddOns  []string    `json:"add_ons,omitempty"`
	Status  OrderStatus `json:"status"`
	Images  []ImageInfo `json:"images"`
	Errors  []string    `json:"errors,omitempty"`
}

type ImageInfo struct {
	ImageID  uint   `json:"image_id"`
	VideoID  uint   `json:"video_id"`
	Filename string `json:"filename"`
}

type OrderStatusResponse struct {
	OrderID uint        `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

type OrderResponse struct {
	ID            uint           `json:"order_id"`
	Package       PackageTier    `json:"package"`
	AddOns        RawJSON        `json:"add_ons,omitempty" swaggertype:"array,string"`
	ParentOrderID *uint          `json:"parent_order_id,omitempty"`
	Status        OrderStatus    `json:"status"`
	Videos        []VideoSummary `json:"videos"`
	CreatedAt     time.Time      `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type VideoSummary struct {
	ImageID   uint        `json:"image_id"`
	Filename  string      `json:"filename"`
	VideoID   *uint       `json:"video_id"`
	Iteration int         `json:"iteration"`
	Status    VideoStatus `json:"status"`
	VideoURL  *string     `json:"video_url"`
}

type VideoResponse struct {
	ID            uint        `json:"id"`
	ImageID       uint        `json:"image_id"`
	Iteration     int         `json:"iteration"`
	Prompt        string      `json:"prompt"`
	JobID         *string     `json:"job_id"`
	Status        VideoStatus `json:"status"`
	VideoURL      *string     `json:"video_url"`
	ParentVideoID *uint       `json:"parent_video_id"`
	FailureReason *string     `json:"failure_reason,omitempty"`
}

// NewVideoResponse copies the client-facing fields of v.
func NewVideoResponse(v *Video) VideoResponse {
	return VideoResponse{
		ID:            v.ID,
		ImageID:       v.ImageID,
		Iteration:     v.Iteration,
		Prompt:        v.Prompt,
		JobID:         v.JobID,
		Status:        v.Status,
		VideoURL:      v.VideoURL,
		ParentVideoID: v.ParentVideoID,
		FailureReason: v.FailureReason,
	}
}

type FeedbackResponse struct {
	FeedbackID uint          `json:"feedback_id"`
	NewPrompt  string        `json:"new_prompt"`
	Video      VideoResponse `json:"video"`
}

type DownloadCenterResponse struct {
	Videos []FinalVideo `json:"videos"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
}

type PollStartedResponse struct {
	Status              string `json:"status"`
	TaskID              string `json:"task_id"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	MaxChecks           int    `json:"max_checks"`
}

type RunwayStatusResponse struct {
	Mock          bool   `json:"mock"`
	APIKeyPresent bool   `json:"api_key_present"`
	Model         string `json:"model"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
