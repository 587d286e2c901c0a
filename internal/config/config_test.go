package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-video-backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	v := config.NewViper()
	v.Set("auth.jwt_secret", "secret")

	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddress)
	assert.Equal(t, "gen4_turbo", cfg.RunwayModel)
	assert.Equal(t, 5, cfg.RunwayDuration)
	assert.Equal(t, 30, cfg.RunwayPollChecks)
	assert.Equal(t, 30*time.Second, cfg.RunwayPollInterval)
	assert.Equal(t, 3, cfg.ArchiveAttempts)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.False(t, cfg.StorageEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "env-secret")
	t.Setenv("RUNWAY_MOCK", "true")
	t.Setenv("RUNWAY_API_KEY", "rk-test")
	t.Setenv("AUTH_ADMIN_EMAILS", "Boss@Example.com, ops@example.com")

	cfg, err := config.Load(config.NewViper())
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.True(t, cfg.RunwayMock)
	assert.Equal(t, "rk-test", cfg.RunwayAPIKey)
	assert.True(t, cfg.IsAdminEmail("boss@example.com"))
	assert.False(t, cfg.IsAdminEmail("someone@example.com"))
}

func TestValidate_MissingSecret(t *testing.T) {
	_, err := config.Load(config.NewViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

func TestValidate_SupabaseNeedsKey(t *testing.T) {
	v := config.NewViper()
	v.Set("auth.jwt_secret", "secret")
	v.Set("supabase.url", "https://example.supabase.co")

	_, err := config.Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_KEY")
}
