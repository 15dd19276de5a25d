// Package principals stores the identities that sessions are issued for,
// together with their role assignments.
package principals

import (
	"context"
	"time"

	"github.com/echofyteam/echofy-auth/internal/server/models"
)

type Repository interface {
	// Create inserts p with a generated id. Email and username collisions map to
	// common.ErrDuplicateEmail and common.ErrDuplicateUsername.
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	// AssignRole links a role by name; unknown names yield common.ErrRoleNotFound.
	AssignRole(ctx context.Context, principalID, role string) error

	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	FindByUsername(ctx context.Context, username string) (*models.Principal, error)
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// MarkDeleted soft-deletes an active principal; already deleted or unknown
	// ids yield common.ErrPrincipalNotFound.
	MarkDeleted(ctx context.Context, id string) error
}
