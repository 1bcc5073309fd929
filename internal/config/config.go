package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Kie provider
	KieAPIKey         string
	KieAPIBaseURL     string
	KieCallbackSecret string

	// OpenRouter (LLM)
	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Poll sweep
	CronSecret string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		KieAPIKey:         getEnv("KIE_API_KEY", ""),
		KieAPIBaseURL:     getEnv("KIE_API_BASE_URL", "https://api.kie.ai"),
		KieCallbackSecret: getEnv("KIE_CALLBACK_SECRET", ""),

		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "story-media"),

		CronSecret: getEnv("CRON_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.KieAPIKey == "" {
		return fmt.Errorf("KIE_API_KEY is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

// ImageCallbackURL is the webhook the provider calls for image jobs. The
// callback secret rides along as a query parameter so retried deliveries
// stay verifiable even when the provider strips custom headers.
func (c *Config) ImageCallbackURL() string {
	return c.callbackURL("/api/callback/kie/image")
}

// VideoCallbackURL is the webhook the provider calls for video jobs.
func (c *Config) VideoCallbackURL() string {
	return c.callbackURL("/api/callback/kie/video")
}

func (c *Config) callbackURL(path string) string {
	url := c.BaseURL + path
	if c.KieCallbackSecret != "" {
		url += "?secret=" + c.KieCallbackSecret
	}
	return url
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
