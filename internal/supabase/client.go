package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
	"tour-video-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is not configured")
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}
