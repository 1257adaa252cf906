package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MONGODB_MAX_POOL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "library", cfg.DBName)
	assert.Equal(t, uint64(2), cfg.MongoMinPool)
	assert.Equal(t, uint64(20), cfg.MongoMaxPool)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MONGODB_MAX_POOL", "50")
	t.Setenv("MONGODB_MIN_POOL", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "library@example.com")
	t.Setenv("SMTP_FROM", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, uint64(50), cfg.MongoMaxPool)
	assert.Equal(t, uint64(2), cfg.MongoMinPool)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "library@example.com", cfg.SMTPFrom)
	assert.True(t, cfg.MailEnabled())
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("MONGODB_MIN_POOL", "30")
	t.Setenv("MONGODB_MAX_POOL", "10")
	_, err = Load()
	assert.ErrorContains(t, err, "MONGODB_MIN_POOL")
}
