package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/echofyteam/echofy-auth/internal/common"
)

// Problem is the JSON body of every error response.
type Problem struct {
	Title     string    `json:"title"`
	Detail    string    `json:"detail"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// statusFor maps a service error onto an HTTP status and a public detail
// message. Anything unrecognised is a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "Bad credentials"
	case errors.Is(err, common.ErrPasswordMismatch):
		return http.StatusBadRequest, "Passwords do not match"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid token"
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict, "User with this email already exists"
	case errors.Is(err, common.ErrTokenNotFound):
		return http.StatusNotFound, "Token not found"
	case errors.Is(err, common.ErrPrincipalNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, common.ErrTransientStoreFailure):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func abortWithProblem(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, Problem{
		Title:     http.StatusText(status),
		Detail:    detail,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

func abortWithError(c *gin.Context, err error) {
	status, detail := statusFor(err)
	_ = c.Error(err)
	abortWithProblem(c, status, detail)
}
