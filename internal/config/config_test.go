package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.RateMargin.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 3, cfg.ReminderDays)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ADMIN_EMAILS", " Root@Example.com, ops@example.com ,")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestFromEnvValidation(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_DRIVER", "mongo"},
		{"JWT_SECRET", ""},
		{"HMAC_SECRET", ""},
		{"TOKEN_TTL", "soon"},
		{"RATE_MARGIN", "five"},
		{"REMINDER_DAYS", "-1"},
		{"AUTO_MIGRATE", "maybe"},
		{"BCRYPT_COST", "fast"},
		{"BCRYPT_COST", "3"},
		{"BCRYPT_COST", "32"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := fromEnv()
			assert.Error(t, err)
		})
	}
}
