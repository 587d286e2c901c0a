package models

import (
	"fmt"
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        *string   `gorm:"uniqueIndex;size:255" json:"email"`
	Name         *string   `gorm:"size:255" json:"name"`
	IsGuest      bool      `gorm:"not null;default:false" json:"is_guest"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Code returns the short display code used in admin views.
func (u User) Code() string {
	if u.IsGuest {
		return fmt.Sprintf("GST-%05d", u.ID)
	}
	return fmt.Sprintf("USR-%05d", u.ID)
}

// ResetToken is a single-use password reset token.
type ResetToken struct {
	Token     string     `gorm:"primaryKey;size:64" json:"-"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
