package auth

import (
	"context"
	"testing"

	"github.com/echofyteam/echofy-auth/internal/server/models"
)

func TestAuthenticationContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected no authentication on empty context")
	}

	a := &models.Authentication{Principal: &models.Principal{ID: "p1"}, Authorities: []string{"ROLE_USER"}}
	ctx = WithAuthentication(ctx, a)

	got, ok := FromContext(ctx)
	if !ok || got != a {
		t.Fatalf("expected attached authentication, got %v %v", got, ok)
	}

	if _, ok := FromContext(WithAuthentication(context.Background(), nil)); ok {
		t.Fatalf("nil authentication must not count as attached")
	}
}
