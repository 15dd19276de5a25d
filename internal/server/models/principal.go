package models

import (
	"time"

	"github.com/echofyteam/echofy-auth/internal/common"
)

// Principal is the identity record a session is issued for.
type Principal struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Roles        []string
	Permissions  []string
	Blocked      bool
	Deleted      bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Active reports whether the principal may authenticate.
func (p *Principal) Active() bool {
	return !p.Blocked && !p.Deleted
}

// PrincipalSummary is the public view of a principal returned after sign-up.
type PrincipalSummary struct {
	ID        string
	Username  string
	LastLogin *time.Time
}

func (p *Principal) Summary() PrincipalSummary {
	return PrincipalSummary{ID: p.ID, Username: p.Username, LastLogin: p.LastLoginAt}
}

// Authorities lists every role as ROLE_<name> followed by the permission
// codes granted through those roles.
func (p *Principal) Authorities() []string {
	out := make([]string, 0, len(p.Roles)+len(p.Permissions))
	for _, r := range p.Roles {
		out = append(out, common.AuthorityPrefix+r)
	}
	return append(out, p.Permissions...)
}
