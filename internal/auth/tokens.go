package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"tour-video-backend/internal/models"
)

var ErrInvalidToken = errors.New("reset token is invalid or expired")

// TokenStore keeps single-use reset tokens in the database so they survive
// restarts and are shared by every instance.
type TokenStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewTokenStore(db *gorm.DB, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenStore{db: db, ttl: ttl, now: time.Now}
}

// Issue creates a token for userID that expires after the store's TTL.
func (s *TokenStore) Issue(ctx context.Context, userID uint) (*models.ResetToken, error) {
	now := s.now().UTC()
	token := &models.ResetToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// Consume marks the token used and returns its user. A token can be consumed
// once, and only before it expires.
func (s *TokenStore) Consume(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	now := s.now().UTC()

	var userID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ResetToken{}).
			Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}
		var row models.ResetToken
		if err := tx.Where("token = ?", token).First(&row).Error; err != nil {
			return err
		}
		userID = row.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// PurgeExpired deletes tokens past their expiry.
func (s *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&models.ResetToken{})
	return res.RowsAffected, res.Error
}
