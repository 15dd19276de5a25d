// Package httpapi exposes the session lifecycle over HTTP with gin.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/echofyteam/echofy-auth/internal/logging"
)

// NewRouter wires the middleware chain and routes. limiter may be nil.
func NewRouter(h *Handler, authn *Authenticator, limiter *RateLimiter, logger logging.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	if limiter != nil {
		r.Use(limiter.Handler())
	}
	r.Use(authn.Middleware())

	r.GET("/healthz", h.Health)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/sign-in", h.SignIn)
		authGroup.POST("/sign-up", h.SignUp)
		authGroup.POST("/refresh-token", h.RefreshToken)
		authGroup.POST("/sign-out", h.SignOut)

		users := api.Group("/users", RequireAuthentication())
		users.GET("/me", h.Me)
		users.DELETE("/me", h.DeleteMe)
	}

	return r
}
