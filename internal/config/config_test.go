package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ORIGIN", "https://app.example.com, http://localhost:5173,")

	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, "api", cfg.RunMode)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.CorsOrigins)
	assert.Equal(t, 10, cfg.EmailRateLimit)
	assert.Equal(t, time.Minute, cfg.EmailRateWindow)
	assert.Equal(t, 8, cfg.InvoiceNumberAttempts)
	assert.Equal(t, 5, cfg.InvoiceSaveAttempts)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 18.0, cfg.DefaultTaxPercent)
	assert.Equal(t, 10, cfg.WorkerConcurrency)
	assert.Equal(t, "@hourly", cfg.OverdueSweepCron)
	assert.Equal(t, 2, cfg.AIMaxAttempts)
	assert.Equal(t, 8000, cfg.AIMaxPromptChars)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestLoad_InvalidNumber(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"not a number", "EMAIL_RATE_LIMIT", "ten", "invalid EMAIL_RATE_LIMIT"},
		{"zero limit", "EMAIL_RATE_LIMIT", "0", "invalid EMAIL_RATE_LIMIT"},
		{"zero window", "EMAIL_RATE_WINDOW_SECONDS", "0", "invalid EMAIL_RATE_WINDOW_SECONDS"},
		{"negative window", "EMAIL_RATE_WINDOW_SECONDS", "-60", "invalid EMAIL_RATE_WINDOW_SECONDS"},
		{"zero ai attempts", "AI_MAX_ATTEMPTS", "0", "invalid AI_MAX_ATTEMPTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MONGO_URI", "mongodb://localhost:27017")
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(tt.key, tt.value)

			_, err := Load("api")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
