package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MONGO_URI", "JWT_SECRET", "REDIS_ADDR", "REDIS_PASSWORD"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  uri: "mongodb://localhost:27017/hub"
jwt:
  secret: "s"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1313, cfg.Server.Port)
	assert.Equal(t, 1440, cfg.JWT.Expiry)
	assert.Equal(t, time.Minute, cfg.XP.RateLimitWindow)
	assert.Equal(t, 10, cfg.XP.RateLimitMax)
	assert.Equal(t, "xp:events", cfg.XP.EventStream)
	assert.Equal(t, DefaultPolicies(), cfg.RBAC.Policies)
	assert.False(t, cfg.Database.Transactions)
}

func TestLoadConfigExample(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("config.example.yml")
	require.NoError(t, err)
	assert.True(t, cfg.Database.Transactions)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Len(t, cfg.RBAC.Policies, 5)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db:27017/prod")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_ADDR", "cache:6379")

	path := writeConfig(t, `
xp:
  rateLimitWindow: 30s
  rateLimitMax: 3
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017/prod", cfg.Database.URI)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.XP.RateLimitWindow)
	assert.Equal(t, 3, cfg.XP.RateLimitMax)
}

func TestLoadConfigValidation(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeConfig(t, "jwt:\n  secret: s\n"))
	assert.ErrorContains(t, err, "database.uri")

	_, err = LoadConfig(writeConfig(t, "database:\n  uri: mongodb://x\n"))
	assert.ErrorContains(t, err, "jwt.secret")

	_, err = LoadConfig(writeConfig(t, `
database:
  uri: mongodb://x
jwt:
  secret: s
rbac:
  policies:
    - ["admin", "level"]
`))
	assert.ErrorContains(t, err, "rbac.policies[0]")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv("CONFIG_PATH", "/etc/hub.yml")
	assert.Equal(t, "/etc/hub.yml", Path())
}
