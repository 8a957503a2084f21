package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, NotifyDriverQueue, cfg.Notify.Driver)
	assert.Equal(t, 50, cfg.Registration.CodeMaxAttempts)
	assert.Equal(t, time.Minute, cfg.Stats.CacheTTL)
	assert.Equal(t, "27 & 28 December 2025", cfg.Event.Dates)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STORE_DRIVER", "MONGO")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("STATS_CACHE_TTL", "not-a-duration")
	t.Setenv("ADMIN_EMAIL", "ops@example.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Stats.CacheTTL)
	assert.Equal(t, "ops@example.org", cfg.Admin.Email)
}

func TestLoadRequiresJWTSecretInProduction(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENV", EnvProduction)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "dev_secret")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", strings.Repeat("s", 48))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("s", 48), cfg.JWT.Secret)
}

func TestLoadGeneratesDevelopmentJWTSecret(t *testing.T) {
	chdirTemp(t)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)

	assert.Len(t, first.JWT.Secret, 2*minJWTSecretLength)
	assert.NotEqual(t, "dev_secret", first.JWT.Secret)
	assert.NotEqual(t, first.JWT.Secret, second.JWT.Secret)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
