package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/logging"
	"github.com/echofyteam/echofy-auth/internal/server/auth"
	"github.com/echofyteam/echofy-auth/internal/server/models"
)

// AccessTokenVerifier is the part of auth.TokenIssuer the middleware needs.
type AccessTokenVerifier interface {
	ExtractSubject(token string, kind models.TokenKind) (string, error)
	IsValid(token, expectedSubject string, kind models.TokenKind) bool
}

// PrincipalFinder resolves the subject of an access token.
type PrincipalFinder interface {
	FindPrincipalByIdentifier(ctx context.Context, identifier string) (*models.Principal, error)
}

// Authenticator attaches the caller's Authentication to the request context
// when a valid bearer access token is presented. It never rejects a request.
type Authenticator struct {
	verifier   AccessTokenVerifier
	principals PrincipalFinder
	logger     logging.Logger
}

func NewAuthenticator(v AccessTokenVerifier, p PrincipalFinder, logger logging.Logger) *Authenticator {
	return &Authenticator{
		verifier:   v,
		principals: p,
		logger:     logger.With("module", "authenticator"),
	}
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := auth.FromContext(ctx); ok {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if ok {
			if authn := a.authenticate(ctx, token); authn != nil {
				c.Request = c.Request.WithContext(auth.WithAuthentication(ctx, authn))
			}
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(ctx context.Context, token string) *models.Authentication {
	subject, err := a.verifier.ExtractSubject(token, models.Access)
	if err != nil {
		a.logger.Debug(ctx, "access token rejected", "error", err)
		return nil
	}

	p, err := a.principals.FindPrincipalByIdentifier(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrPrincipalNotFound) {
			a.logger.Debug(ctx, "access token subject unknown")
			return nil
		}
		a.logger.Warn(ctx, "principal lookup failed", "error", err)
		return nil
	}
	if !p.Active() {
		a.logger.Debug(ctx, "access token for inactive principal", "principal_id", p.ID)
		return nil
	}

	if !a.verifier.IsValid(token, p.Email, models.Access) {
		return nil
	}

	return &models.Authentication{Principal: p, Authorities: p.Authorities()}
}

// bearerToken extracts the credential of a "Bearer <token>" header value.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuthentication rejects requests that reach it unauthenticated.
func RequireAuthentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.FromContext(c.Request.Context()); !ok {
			abortWithProblem(c, http.StatusUnauthorized, "Full authentication is required to access this resource")
			return
		}
		c.Next()
	}
}
