package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"storyforge-backend/internal/config"
)

func TestValidate(t *testing.T) {
	cfg := &config.Config{
		KieAPIKey:              "kie-key",
		SupabaseURL:            "https://project.supabase.co",
		SupabasePublishableKey: "pub-key",
		SupabaseJWTSecret:      "jwt-secret",
	}
	assert.NoError(t, cfg.Validate())

	missingKie := *cfg
	missingKie.KieAPIKey = ""
	assert.ErrorContains(t, missingKie.Validate(), "KIE_API_KEY")

	missingJWT := *cfg
	missingJWT.SupabaseJWTSecret = ""
	assert.ErrorContains(t, missingJWT.Validate(), "SUPABASE_JWT_SECRET")
}

func TestCallbackURLs(t *testing.T) {
	cfg := &config.Config{
		BaseURL:           "https://app.example.com",
		KieCallbackSecret: "cb-secret",
	}

	assert.Equal(t, "https://app.example.com/api/callback/kie/image?secret=cb-secret", cfg.ImageCallbackURL())
	assert.Equal(t, "https://app.example.com/api/callback/kie/video?secret=cb-secret", cfg.VideoCallbackURL())
}

func TestCallbackURLs_NoSecret(t *testing.T) {
	cfg := &config.Config{BaseURL: "https://app.example.com"}

	assert.Equal(t, "https://app.example.com/api/callback/kie/image", cfg.ImageCallbackURL())
	assert.Equal(t, "https://app.example.com/api/callback/kie/video", cfg.VideoCallbackURL())
}
