// Package common defines shared constants and sentinel errors used across
// the layers of the auth service. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrRoleNotFound      = errors.New("role not found")
	ErrDuplicateToken    = errors.New("duplicate token")
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrTransientStoreFailure marks timeouts and connectivity problems of the
	// store or directory. It is retryable and never a security verdict.
	ErrTransientStoreFailure = errors.New("transient store failure")

	// Service-level errors.
	ErrorInternal           = errors.New("internal error")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrValidation           = errors.New("validation error")

	// Token lifecycle errors.
	ErrTokenNotFound = errors.New("token not found")
	ErrInvalidToken  = errors.New("invalid token")
)
