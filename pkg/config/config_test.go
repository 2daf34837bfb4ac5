package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("NOTIFICATION_SENDER", "")
	t.Setenv("DB_AUTO_MIGRATE", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.False(t, cfg.Storage.AutoMigrate)
	assert.Equal(t, "log", cfg.Notification.Sender)
	assert.Equal(t, 2, cfg.Notification.Workers)
	assert.Equal(t, "https://meet.jit.si", cfg.Meeting.BaseURL)
	assert.Equal(t, "dat-", cfg.Meeting.Prefix)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DirectoryTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("NOTIFICATION_SENDER", "http")
	t.Setenv("MAIL_API_URL", "http://mail.internal/send")
	t.Setenv("NOTIFICATION_WORKERS", "4")
	t.Setenv("NOTIFICATION_TIMEZONE", "Africa/Lagos")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("ALLOWED_ORIGINS", "https://app.dathealth.example, https://admin.dathealth.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "http", cfg.Notification.Sender)
	assert.Equal(t, 4, cfg.Notification.Workers)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "Africa/Lagos", cfg.Notification.Location().String())
	assert.Equal(t, []string{"https://app.dathealth.example", "https://admin.dathealth.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:          AppConfig{Env: "production"},
			Auth:         AuthConfig{JWTSecret: "secret"},
			Storage:      StorageConfig{Driver: "postgres"},
			Notification: NotificationConfig{Sender: "log", Workers: 1, QueueSize: 1, TimeZone: "UTC"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret in production", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "http sender without url", mutate: func(c *Config) { c.Notification.Sender = "http" }, wantErr: "MAIL_API_URL"},
		{name: "unknown sender", mutate: func(c *Config) { c.Notification.Sender = "pigeon" }, wantErr: "NOTIFICATION_SENDER"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: "STORAGE_DRIVER"},
		{name: "zero workers", mutate: func(c *Config) { c.Notification.Workers = 0 }, wantErr: "NOTIFICATION_WORKERS"},
		{name: "bad timezone", mutate: func(c *Config) { c.Notification.TimeZone = "Mars/Olympus" }, wantErr: "NOTIFICATION_TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "tc", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=tc sslmode=disable", db.DatabaseDSN())
}
