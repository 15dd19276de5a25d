// Package auth issues and verifies the signed tokens handed out to principals
// and carries the authenticated caller through request contexts.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config carries the per-kind secrets and lifetimes. Secrets may be base64
// encoded; a value that does not decode is used as raw bytes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the JWT payload: registered claims plus userID and roles.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"userID"`
	Roles  []string `json:"roles,omitempty"`
}

type keySpec struct {
	secret []byte
	ttl    time.Duration
}

// TokenIssuer signs and verifies HS256 tokens, one secret and TTL per kind.
type TokenIssuer struct {
	keys map[models.TokenKind]keySpec
	now  func() time.Time
}

type Option func(*TokenIssuer)

// WithClock replaces time.Now for expiry computation and validation.
func WithClock(now func() time.Time) Option {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

func NewTokenIssuer(cfg Config, opts ...Option) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access ttl must be shorter than refresh ttl")
	}

	i := &TokenIssuer{
		keys: map[models.TokenKind]keySpec{
			models.Access:  {secret: decodeSecret(cfg.AccessSecret), ttl: cfg.AccessTTL},
			models.Refresh: {secret: decodeSecret(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func decodeSecret(s string) []byte {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) > 0 {
		return b
	}
	return []byte(s)
}

func (i *TokenIssuer) key(kind models.TokenKind) (keySpec, error) {
	k, ok := i.keys[kind]
	if !ok {
		return keySpec{}, fmt.Errorf("unknown token kind %d", kind)
	}
	return k, nil
}

// ComputeExpiry returns now plus the configured TTL for kind.
func (i *TokenIssuer) ComputeExpiry(kind models.TokenKind) time.Time {
	k, err := i.key(kind)
	if err != nil {
		return i.now()
	}
	return i.now().Add(k.ttl)
}

// GenerateToken signs a token for subject carrying the userID and roles of claims.
func (i *TokenIssuer) GenerateToken(subject string, claims models.Claims, kind models.TokenKind) (string, error) {
	k, err := i.key(kind)
	if err != nil {
		return "", err
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(k.ttl)),
		},
		UserID: claims.UserID,
		Roles:  claims.Roles,
	})

	tokenString, err := token.SignedString(k.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (i *TokenIssuer) parse(tokenString string, kind models.TokenKind) (*Claims, error) {
	k, err := i.key(kind)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return k.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ParseClaims verifies tokenString as kind and returns its claims bundle.
func (i *TokenIssuer) ParseClaims(tokenString string, kind models.TokenKind) (*models.Claims, error) {
	c, err := i.parse(tokenString, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	out := &models.Claims{Subject: c.Subject, UserID: c.UserID, Roles: c.Roles}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// ExtractSubject returns the verified subject of tokenString, or
// common.ErrInvalidToken when it cannot be parsed or verified.
func (i *TokenIssuer) ExtractSubject(tokenString string, kind models.TokenKind) (string, error) {
	c, err := i.parse(tokenString, kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	return c.Subject, nil
}

// IsValid reports whether tokenString verifies as kind, is unexpired and
// belongs to expectedSubject.
func (i *TokenIssuer) IsValid(tokenString, expectedSubject string, kind models.TokenKind) bool {
	c, err := i.parse(tokenString, kind)
	if err != nil {
		return false
	}
	return c.Subject != "" && c.Subject == expectedSubject
}
