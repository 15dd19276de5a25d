package models

import "time"

// TokenKind selects the signing secret and lifetime of an issued token.
type TokenKind int

const (
	Access TokenKind = iota
	Refresh
)

func (k TokenKind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Claims is the bundle embedded in every issued token.
type Claims struct {
	Subject   string
	UserID    string
	Roles     []string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authentication is what the request boundary attaches for an authenticated caller.
type Authentication struct {
	Principal   *Principal
	Authorities []string
}
