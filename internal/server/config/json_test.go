package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":                       "www.example:9000",
		"database_dsn":                    "postgres://db",
		"access_secret":                   "a",
		"refresh_secret":                  "r",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"store_timeout":                   "2s",
		"purge_expired_interval":          "1h",
		"purge_revoked_interval":          int64(2 * time.Hour),
		"rate_limit_rpm":                  0,
		"log_format":                      "zap",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "a", cfg.AccessSecret)
		assert.Equal(t, "r", cfg.RefreshSecret)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
		assert.Equal(t, time.Hour, cfg.PurgeExpiredInterval)
		assert.Equal(t, 2*time.Hour, cfg.PurgeRevokedInterval)
		assert.Equal(t, 0, cfg.RateLimitRPM)
		assert.Equal(t, "zap", cfg.LogFormat)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"http_addr": ":7000"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":7000", cfg.HTTPAddr)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 600, cfg.RateLimitRPM)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			HTTPAddr:                     "defaults:1234",
			DatabaseDSN:                  "dsn",
			AccessTokenValidityDuration:  2 * time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "dsn", cfg.DatabaseDSN)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "nope.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
