package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "tour-video.db"
	defaultLogLevel        = "info"
	defaultRunwayBaseURL   = "https://api.dev.runwayml.com"
	defaultRunwayModel     = "gen4_turbo"
	defaultOpenAIModel     = "gpt-4o"
	defaultStorageBucket   = "tour-videos"
	defaultStorageRoot     = "/quantumtour"
	defaultEventsTable     = "pipeline_events"
	defaultPipelineWorkers = 3
)

type Config struct {
	// Server
	HTTPAddress string
	Environment string
	LogLevel    string
	BaseURL     string

	// Database
	DatabaseURL  string
	DatabasePath string

	// Auth
	JWTSecret       string
	ResetTokenTTL   time.Duration
	ResetLinkBase   string
	AdminEmailsList []string

	// Runway
	RunwayAPIKey       string
	RunwayBaseURL      string
	RunwayModel        string
	RunwayMock         bool
	RunwayDuration     int
	RunwayWaitTimeout  time.Duration
	RunwayPollInterval time.Duration
	RunwayPollChecks   int

	// OpenAI
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	OpenAIImproveModel string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string
	SupabaseEventsTable   string

	// Archive
	StorageRootFolder string
	ArchiveAttempts   int

	// Redis (optional, coordinates pollers across instances)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Stripe
	StripeWebhookSecret string

	// Pipeline
	PipelineConcurrency int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults binds environment variables and sets defaults. Keys map onto
// env names by replacing dots with underscores, so runway.api_key reads
// RUNWAY_API_KEY.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.address", defaultHTTPAddress)
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("base.url", "http://localhost:8080")

	v.SetDefault("database.path", defaultDatabasePath)

	v.SetDefault("reset.ttl_minutes", 60)
	v.SetDefault("reset.link_base", "http://localhost:3000/reset-password")

	v.SetDefault("runway.base_url", defaultRunwayBaseURL)
	v.SetDefault("runway.model", defaultRunwayModel)
	v.SetDefault("runway.mock", false)
	v.SetDefault("runway.duration_seconds", 5)
	v.SetDefault("runway.wait_timeout_seconds", 600)
	v.SetDefault("runway.poll_interval_seconds", 30)
	v.SetDefault("runway.poll_max_checks", 30)

	v.SetDefault("openai.model", defaultOpenAIModel)
	v.SetDefault("openai.improve_model", defaultOpenAIModel)

	v.SetDefault("supabase.storage_bucket", defaultStorageBucket)
	v.SetDefault("supabase.events_table", defaultEventsTable)

	v.SetDefault("storage.root_folder", defaultStorageRoot)
	v.SetDefault("archive.attempts", 3)

	v.SetDefault("redis.db", 0)

	v.SetDefault("pipeline.concurrency", defaultPipelineWorkers)
}

// Load parses runtime configuration from viper and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPAddress: v.GetString("http.address"),
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("log.level"),
		BaseURL:     v.GetString("base.url"),

		DatabaseURL:  v.GetString("database.url"),
		DatabasePath: v.GetString("database.path"),

		JWTSecret:       v.GetString("auth.jwt_secret"),
		ResetTokenTTL:   time.Duration(v.GetInt("reset.ttl_minutes")) * time.Minute,
		ResetLinkBase:   v.GetString("reset.link_base"),
		AdminEmailsList: splitList(v.GetString("auth.admin_emails")),

		RunwayAPIKey:       v.GetString("runway.api_key"),
		RunwayBaseURL:      v.GetString("runway.base_url"),
		RunwayModel:        v.GetString("runway.model"),
		RunwayMock:         v.GetBool("runway.mock"),
		RunwayDuration:     v.GetInt("runway.duration_seconds"),
		RunwayWaitTimeout:  time.Duration(v.GetInt("runway.wait_timeout_seconds")) * time.Second,
		RunwayPollInterval: time.Duration(v.GetInt("runway.poll_interval_seconds")) * time.Second,
		RunwayPollChecks:   v.GetInt("runway.poll_max_checks"),

		OpenAIAPIKey:       v.GetString("openai.api_key"),
		OpenAIBaseURL:      v.GetString("openai.base_url"),
		OpenAIModel:        v.GetString("openai.model"),
		OpenAIImproveModel: v.GetString("openai.improve_model"),

		SupabaseURL:           v.GetString("supabase.url"),
		SupabaseServiceKey:    v.GetString("supabase.service_key"),
		SupabaseStorageBucket: v.GetString("supabase.storage_bucket"),
		SupabaseEventsTable:   v.GetString("supabase.events_table"),

		StorageRootFolder: v.GetString("storage.root_folder"),
		ArchiveAttempts:   v.GetInt("archive.attempts"),

		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),

		StripeWebhookSecret: v.GetString("stripe.webhook_secret"),

		PipelineConcurrency: v.GetInt("pipeline.concurrency"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_PATH is required")
	}
	if c.RunwayDuration <= 0 {
		return fmt.Errorf("RUNWAY_DURATION_SECONDS must be positive")
	}
	if c.RunwayPollChecks <= 0 {
		return fmt.Errorf("RUNWAY_POLL_MAX_CHECKS must be positive")
	}
	if c.ArchiveAttempts <= 0 {
		return fmt.Errorf("ARCHIVE_ATTEMPTS must be positive")
	}
	if c.PipelineConcurrency <= 0 {
		return fmt.Errorf("PIPELINE_CONCURRENCY must be positive")
	}
	if c.SupabaseURL != "" && c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}
	return nil
}

// StorageEnabled reports whether archived videos go to object storage.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// IsAdminEmail reports whether email is on the configured admin list.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmailsList {
		if admin == email {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
