package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/dbx"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/google/uuid"
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

// selectPrincipal reads a user row with its role names and the permission
// codes granted through those roles, each folded into one comma separated
// column.
const selectPrincipal = `
	SELECT u.id, u.email, u.username, u.password_hash, u.blocked, u.deleted,
	       u.created_at, u.last_login_at,
	       COALESCE(string_agg(DISTINCT r.name, ',' ORDER BY r.name), ''),
	       COALESCE(string_agg(DISTINCT p.code, ',' ORDER BY p.code), '')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {

	query :=
		`INSERT INTO users (id, email, username, password_hash, blocked, deleted, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	created := *p
	created.ID = uuid.NewString()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		created.ID, created.Email, created.Username, created.PasswordHash,
		created.Blocked, created.Deleted, created.CreatedAt)

	if err != nil {
		switch {
		case dbx.IsUniqueViolation(err, emailConstraint):
			return nil, common.ErrDuplicateEmail
		case dbx.IsUniqueViolation(err, usernameConstraint):
			return nil, common.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return &created, nil
}

func (r *PostgresRepository) AssignRole(ctx context.Context, principalID, role string) error {
	query :=
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE name = $2
		 ON CONFLICT DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, principalID, role)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		exists, err := r.roleExists(ctx, role)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", common.ErrRoleNotFound, role)
		}
	}
	return nil
}

func (r *PostgresRepository) roleExists(ctx context.Context, role string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return exists, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return r.findOne(ctx, "u.email = $1", email)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Principal, error) {
	return r.findOne(ctx, "u.username = $1", username)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	return r.findOne(ctx, "u.id = $1", id)
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.Principal, error) {
	query := selectPrincipal + " WHERE " + where + " GROUP BY u.id"

	p := &models.Principal{}
	var lastLogin sql.NullTime
	var roles, permissions string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.Username, &p.PasswordHash, &p.Blocked, &p.Deleted,
		&p.CreatedAt, &lastLogin, &roles, &permissions)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLoginAt = &t
	}
	if roles != "" {
		p.Roles = strings.Split(roles, ",")
	}
	if permissions != "" {
		p.Permissions = strings.Split(permissions, ",")
	}

	return p, nil
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return exists, nil
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE users SET last_login_at = $2
		 WHERE id = $1
		 `

	return r.updateOne(ctx, query, id, at)
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET deleted = TRUE
		 WHERE id = $1 AND deleted = FALSE
		 `

	return r.updateOne(ctx, query, id)
}

// updateOne runs an UPDATE that must touch exactly one principal row.
func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrPrincipalNotFound
	}
	return nil
}
