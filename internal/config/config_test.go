package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.QRPollInterval)
	assert.Equal(t, 5*time.Minute, cfg.QRPollTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.LeaderboardDebounce)
	assert.False(t, cfg.StatsLegacyStatusFallback)
	assert.Equal(t, "https://api.razorpay.com/v1", cfg.RazorpayBaseURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("QR_POLL_INTERVAL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "QR_POLL_INTERVAL")
}

func TestLoadRejectsTimeoutBelowInterval(t *testing.T) {
	t.Setenv("QR_POLL_INTERVAL", "10s")
	t.Setenv("QR_POLL_TIMEOUT", "5s")
	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPass: "p", DBName: "n", DBPort: "1"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=1 sslmode=disable", cfg.DatabaseDSN())
}
