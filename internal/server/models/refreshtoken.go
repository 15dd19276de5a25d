package models

import "time"

// RefreshToken is the persisted record of an issued refresh token.
// Revoked only ever moves from false to true.
type RefreshToken struct {
	ID          string
	Token       string
	PrincipalID string
	Revoked     bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsUsable reports whether the record may still be presented at now.
// An expired record is never usable, whatever its revoked flag says.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
