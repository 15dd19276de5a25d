// Package refreshtokens declares the server-side repository contract for
// refresh-token records in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/echofyteam/echofy-auth/internal/server/models"
)

// Repository defines operations for persisting, looking up, revoking and
// purging refresh-token records.
type Repository interface {
	// Save persists rec with a freshly generated id and returns the stored record.
	// A token value that already exists yields common.ErrDuplicateToken.
	Save(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error)

	// FindByValue looks a record up by its token string.
	// Returns common.ErrTokenNotFound when absent.
	FindByValue(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the record revoked if it is not already. The boolean reports
	// whether this call performed the transition.
	Revoke(ctx context.Context, id string) (bool, error)

	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
	DeleteAllRevoked(ctx context.Context) (int64, error)
	DeleteAllForPrincipal(ctx context.Context, principalID string) (int64, error)
}
