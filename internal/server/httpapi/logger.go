package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/echofyteam/echofy-auth/internal/logging"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestLogger logs one line per request. The request id is taken from the
// X-Request-ID header or generated, and echoed back on the response.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	logger = logger.With("module", "http")

	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", requestID,
			"status", status,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Error())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "request", args...)
		case status >= 400:
			logger.Warn(ctx, "request", args...)
		default:
			logger.Info(ctx, "request", args...)
		}
	}
}
