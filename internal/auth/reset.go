package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"tour-video-backend/internal/database"
)

const minPasswordLength = 8

var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending mail.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("password reset requested", zap.String("email", email), zap.String("link", link))
	return nil
}

type ResetService struct {
	store    *database.Store
	tokens   *TokenStore
	mailer   Mailer
	linkBase string
	logger   *zap.Logger
}

func NewResetService(store *database.Store, tokens *TokenStore, mailer Mailer, linkBase string, logger *zap.Logger) *ResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &ResetService{
		store:    store,
		tokens:   tokens,
		mailer:   mailer,
		linkBase: linkBase,
		logger:   logger,
	}
}

// RequestReset mails a reset link when the email belongs to a user. Unknown
// emails succeed silently.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Info("password reset for unknown email ignored")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if _, err := s.tokens.PurgeExpired(ctx); err != nil {
		s.logger.Warn("failed to purge expired reset tokens", zap.Error(err))
	}
	return s.mailer.SendPasswordReset(ctx, email, s.resetLink(token.Token))
}

func (s *ResetService) resetLink(token string) string {
	if s.linkBase == "" {
		return token
	}
	return s.linkBase + "?token=" + url.QueryEscape(token)
}

// ResetPassword consumes the token and stores a bcrypt hash of password.
func (s *ResetService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	userID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password reset completed", zap.Uint("user_id", userID))
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
