package logging

import (
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys never reach a sink with their value. Token values are logged
// by fingerprint under a different key (token_fp).
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"confirm_password": {},
	"token":            {},
	"access_token":     {},
	"refresh_token":    {},
	"secret":           {},
	"authorization":    {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// redact returns args with the values of sensitive keys replaced. args is
// either alternating key/value pairs or slog.Attr values, as accepted by
// slog and zap's sugared API. The input slice is not modified.
func redact(args []any) []any {
	var out []any
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			if isSensitive(a.Key) {
				out = ensureCopy(out, args)
				out[i] = slog.String(a.Key, redacted)
			}
		case string:
			if i+1 < len(args) && isSensitive(a) {
				out = ensureCopy(out, args)
				out[i+1] = redacted
			}
			i++
		}
	}
	if out == nil {
		return args
	}
	return out
}

func ensureCopy(out, args []any) []any {
	if out != nil {
		return out
	}
	return append([]any(nil), args...)
}
