package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/echofyteam/echofy-auth/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "ECHOFY_"

// parseEnv overlays ECHOFY_* environment variables. A .env file (or the one
// named by -env-file) is loaded first; variables already present in the
// process environment win over the file.
//
//	ECHOFY_HTTP_ADDR, ECHOFY_DATABASE_DSN, ECHOFY_ACCESS_SECRET,
//	ECHOFY_REFRESH_SECRET, ECHOFY_ACCESS_TOKEN_TTL, ECHOFY_REFRESH_TOKEN_TTL,
//	ECHOFY_STORE_TIMEOUT, ECHOFY_PURGE_EXPIRED_INTERVAL,
//	ECHOFY_PURGE_REVOKED_INTERVAL, ECHOFY_RATE_LIMIT_RPM, ECHOFY_LOG_FORMAT
//
// Durations use Go syntax ("15m", "168h"). Malformed values are ignored.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		_ = godotenv.Load(path)
	} else {
		_ = godotenv.Load()
	}

	config.HTTPAddr = getEnv("HTTP_ADDR", config.HTTPAddr)
	config.DatabaseDSN = getEnv("DATABASE_DSN", config.DatabaseDSN)
	config.AccessSecret = getEnv("ACCESS_SECRET", config.AccessSecret)
	config.RefreshSecret = getEnv("REFRESH_SECRET", config.RefreshSecret)
	config.AccessTokenValidityDuration = getDuration("ACCESS_TOKEN_TTL", config.AccessTokenValidityDuration)
	config.RefreshTokenValidityDuration = getDuration("REFRESH_TOKEN_TTL", config.RefreshTokenValidityDuration)
	config.StoreTimeout = getDuration("STORE_TIMEOUT", config.StoreTimeout)
	config.PurgeExpiredInterval = getDuration("PURGE_EXPIRED_INTERVAL", config.PurgeExpiredInterval)
	config.PurgeRevokedInterval = getDuration("PURGE_REVOKED_INTERVAL", config.PurgeRevokedInterval)
	config.RateLimitRPM = getInt("RATE_LIMIT_RPM", config.RateLimitRPM)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
