package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParseEnv_OverridesDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	env := map[string]string{
		"HTTP_ADDR":          ":9000",
		"GRPC_ADDR":          ":9001",
		"DATABASE_URL":       "postgres://db",
		"REDIS_ADDR":         "redis:6379",
		"JWT_SECRET":         "0123456789abcdef0123456789abcdef",
		"ACCESS_TOKEN_TTL":   "5m",
		"REFRESH_TOKEN_TTL":  "48h",
		"LOGIN_MAX_ATTEMPTS": "3",
		"LOGIN_COOLDOWN":     "1m",
		"LOG_LEVEL":          "debug",
		"APP_ENV":            "test",
	}

	require.NoError(t, parseEnv(&c, "", mapLookup(env)))

	assert.Equal(t, ":9000", c.EndpointAddrHTTP)
	assert.Equal(t, ":9001", c.EndpointAddrGRPC)
	assert.Equal(t, "postgres://db", c.DatabaseDSN)
	assert.Equal(t, "redis:6379", c.RedisAddr)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", c.SecretKey)
	assert.Equal(t, 5*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 48*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, 3, c.LoginMaxAttempts)
	assert.Equal(t, time.Minute, c.LoginCooldownDuration)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.TestMode)
}

func TestParseEnv_DotEnvFileUsedWhenEnvMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "JWT_SECRET=from-file\nHTTP_ADDR=:7000\nAPP_ENV=production\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var c Config
	c.LoadDefaults()

	require.NoError(t, parseEnv(&c, path, mapLookup(map[string]string{
		"HTTP_ADDR": ":7001",
	})))

	assert.Equal(t, "from-file", c.SecretKey)
	assert.Equal(t, ":7001", c.EndpointAddrHTTP, "real environment wins over .env")
	assert.False(t, c.TestMode)
}

func TestParseEnv_MissingFileIgnored(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := parseEnv(&c, filepath.Join(t.TempDir(), "nope.env"), mapLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
}

func TestParseEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad access ttl", env: map[string]string{"ACCESS_TOKEN_TTL": "soon"}},
		{name: "bad refresh ttl", env: map[string]string{"REFRESH_TOKEN_TTL": "30 days"}},
		{name: "bad cooldown", env: map[string]string{"LOGIN_COOLDOWN": "x"}},
		{name: "bad attempts", env: map[string]string{"LOGIN_MAX_ATTEMPTS": "five"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			require.Error(t, parseEnv(&c, "", mapLookup(tt.env)))
		})
	}
}
