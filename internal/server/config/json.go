package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/echofyteam/echofy-auth/internal/flagx"
	"github.com/echofyteam/echofy-auth/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Values that are absent from the file keep whatever the target Config
// already holds.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessSecret                 string         `json:"access_secret"`
	RefreshSecret                string         `json:"refresh_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	StoreTimeout                 timex.Duration `json:"store_timeout"`
	PurgeExpiredInterval         timex.Duration `json:"purge_expired_interval"`
	PurgeRevokedInterval         timex.Duration `json:"purge_revoked_interval"`
	RateLimitRPM                 *int           `json:"rate_limit_rpm"`
	LogFormat                    string         `json:"log_format"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into the provided Config. Without the flag nothing is loaded.
// An unreadable file or invalid JSON panics: the server must not start on a
// half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessSecret, c.AccessSecret)
	setString(&config.RefreshSecret, c.RefreshSecret)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setDuration(&config.PurgeExpiredInterval, c.PurgeExpiredInterval)
	setDuration(&config.PurgeRevokedInterval, c.PurgeRevokedInterval)
	if c.RateLimitRPM != nil {
		config.RateLimitRPM = *c.RateLimitRPM
	}
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
