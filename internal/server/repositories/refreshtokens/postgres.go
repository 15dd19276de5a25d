// Package refreshtokens provides a PostgreSQL-backed repository for the
// refresh-token records of the session lifecycle.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/dbx"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/google/uuid"
)

// tokenConstraint is the unique constraint on refresh_tokens.token.
const tokenConstraint = "refresh_tokens_token_key"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (id, token, user_id, revoked, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	saved := *rec
	saved.ID = uuid.NewString()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, query,
		saved.ID, saved.Token, saved.PrincipalID, saved.Revoked, saved.CreatedAt, saved.ExpiresAt); err != nil {
		if dbx.IsUniqueViolation(err, tokenConstraint) {
			return nil, common.ErrDuplicateToken
		}
		return nil, fmt.Errorf("error performing sql request: %w", dbx.Classify(err))
	}
	return &saved, nil
}

func (r *PostgresRepository) FindByValue(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, token, user_id, revoked, created_at, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`
	rec := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&rec.ID, &rec.Token, &rec.PrincipalID, &rec.Revoked, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return rec, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE id = $1 AND revoked = FALSE
	`
	n, err := r.exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, t)
}

func (r *PostgresRepository) DeleteAllRevoked(ctx context.Context) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE revoked = TRUE`)
}

func (r *PostgresRepository) DeleteAllForPrincipal(ctx context.Context, principalID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, principalID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
