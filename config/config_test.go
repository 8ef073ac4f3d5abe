package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "delhivery", cfg.Courier.Name)
	assert.Equal(t, 10*time.Second, cfg.Courier.Timeout)
	assert.Equal(t, int64(1), cfg.Credits.OrderCost)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SHIPDESK_DATABASE_DRIVER", "sqlite")
	t.Setenv("SHIPDESK_CREDITS_ORDER_COST", "3")
	t.Setenv("SHIPDESK_COURIER_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(3), cfg.Credits.OrderCost)
	assert.Equal(t, 2*time.Second, cfg.Courier.Timeout)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{Driver: "mysql"},
		JWT:       JWTConfig{Secret: "s"},
		RateLimit: RateLimitConfig{Backend: "memory"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit.Backend = "redis"
	assert.Error(t, cfg.Validate())
	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.Credits.OrderCost = -1
	assert.Error(t, cfg.Validate())
}

func TestAppConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, AppConfig{}.Location())
	assert.Equal(t, time.UTC, AppConfig{Timezone: "Nowhere/Invalid"}.Location())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
