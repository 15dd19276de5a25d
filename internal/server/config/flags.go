package config

import (
	"flag"
	"os"
	"time"

	"github.com/echofyteam/echofy-auth/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   access token HMAC secret
//	-k string   refresh token HMAC secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-w int      store call timeout, seconds
//	-x int      purge-expired interval, minutes
//	-v int      purge-revoked interval, minutes
//	-l int      rate limit, requests per minute per client (0 disables)
//	-f string   log format: slog or zap
//
// Notes:
//   - os.Args is first filtered to the flags recognized here using
//     flagx.FilterArgs, avoiding collisions with -c and -env-file.
//   - Duration flags are integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-k", "-t", "-r", "-w", "-x", "-v", "-l", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessSecret, "s", config.AccessSecret, "access token secret")
	fs.StringVar(&config.RefreshSecret, "k", config.RefreshSecret, "refresh token secret")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	storeTimeout := fs.Int("w", int(config.StoreTimeout.Seconds()), "store_timeout (in seconds)")
	purgeExpiredInterval := fs.Int("x", int(config.PurgeExpiredInterval.Minutes()), "purge_expired_interval (in minutes)")
	purgeRevokedInterval := fs.Int("v", int(config.PurgeRevokedInterval.Minutes()), "purge_revoked_interval (in minutes)")

	fs.IntVar(&config.RateLimitRPM, "l", config.RateLimitRPM, "rate limit (requests per minute)")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format (slog|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.StoreTimeout = time.Duration(*storeTimeout) * time.Second
	config.PurgeExpiredInterval = time.Duration(*purgeExpiredInterval) * time.Minute
	config.PurgeRevokedInterval = time.Duration(*purgeRevokedInterval) * time.Minute
}
