package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap/zapcore"
)

const (
	FormatSlog = "slog"
	FormatZap  = "zap"
)

// New builds the logger selected by format. Both backends write JSON lines
// to w at info level and above.
func New(format string, w io.Writer) (Logger, error) {
	switch format {
	case "", FormatSlog:
		return NewJSONLogger(w, slog.LevelInfo), nil
	case FormatZap:
		return NewZapJSONLogger(w, zapcore.InfoLevel), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
