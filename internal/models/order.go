package models

import (
	"time"

	"gorm.io/datatypes"
)

type PackageTier string

const (
	PackageStarter      PackageTier = "starter"
	PackageProfessional PackageTier = "professional"
	PackagePremium      PackageTier = "premium"
)

// Order groups a batch of uploaded images. A nil UserID marks a guest order.
type Order struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	UserID              *uint          `gorm:"index" json:"user_id"`
	Package             PackageTier    `gorm:"size:32;not null" json:"package"`
	AddOns              datatypes.JSON `json:"add_ons"`
	ParentOrderID       *uint          `gorm:"index" json:"parent_order_id"`
	IsProcessing        bool           `gorm:"not null;default:false" json:"is_processing"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at"`
	ProcessedAt         *time.Time     `json:"processed_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// UploadedImage is one image of an order. VideoURL, VideoPath and
// VideoGeneratedAt mirror the latest successful video for the image.
type UploadedImage struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OrderID          uint       `gorm:"index;not null" json:"order_id"`
	Filename         string     `gorm:"size:255;not null" json:"filename"`
	ContentType      string     `gorm:"size:64" json:"content_type"`
	Content          []byte     `json:"-"`
	Prompt           *string    `json:"prompt"`
	VideoURL         *string    `json:"video_url"`
	VideoPath        *string    `json:"video_path"`
	VideoGeneratedAt *time.Time `json:"video_generated_at"`
	CreatedAt        time.Time  `json:"created_at"`
}
