package auth

import (
	"context"

	"github.com/echofyteam/echofy-auth/internal/server/models"
)

type authenticationKey struct{}

// WithAuthentication returns a copy of ctx carrying a.
func WithAuthentication(ctx context.Context, a *models.Authentication) context.Context {
	return context.WithValue(ctx, authenticationKey{}, a)
}

// FromContext returns the Authentication attached to ctx, if any.
func FromContext(ctx context.Context) (*models.Authentication, bool) {
	a, ok := ctx.Value(authenticationKey{}).(*models.Authentication)
	return a, ok && a != nil
}
