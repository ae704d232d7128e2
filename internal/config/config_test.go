package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/booking")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_RequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/booking")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "")
	t.Setenv("RESERVATION_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.GreaterOrEqual(t, cfg.LockTTL, cfg.UpstreamTimeout)
}

func TestLoad_RedisURL(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "redis://bob:pw@cache:6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, "bob", cfg.RedisUsername)
	assert.Equal(t, "pw", cfg.RedisPassword)
}

func TestGetDuration_AcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("X_SECONDS", "30")
	t.Setenv("X_GO", "2m")
	t.Setenv("X_BAD", "soon")

	assert.Equal(t, 30*time.Second, getDuration("X_SECONDS", time.Minute))
	assert.Equal(t, 2*time.Minute, getDuration("X_GO", time.Minute))
	assert.Equal(t, time.Minute, getDuration("X_BAD", time.Minute))
}

func TestLoad_VNPayHashSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("VNPAY_HASH_SECRET", "merchant-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "merchant-secret", cfg.VNPayHashSecret)
}
