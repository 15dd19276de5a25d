package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/cryptox"
	"github.com/echofyteam/echofy-auth/internal/dbx"
	"github.com/echofyteam/echofy-auth/internal/logging"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/principals"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/repomanager"
)

// PrincipalDirectory owns principal records. The session service only reads
// principals through it and asks it to record logins and create accounts.
type PrincipalDirectory interface {
	// VerifyCredentials accepts an email or a username. Unknown identifiers,
	// wrong passwords and blocked or deleted accounts all yield
	// common.ErrAuthenticationFailed.
	VerifyCredentials(ctx context.Context, identifier, password string) (*models.Principal, error)
	FindPrincipalByIdentifier(ctx context.Context, identifier string) (*models.Principal, error)
	FindPrincipalByID(ctx context.Context, id string) (*models.Principal, error)
	TouchLastLogin(ctx context.Context, p *models.Principal) error
	CreatePrincipal(ctx context.Context, email, passwordHash string, roles []string) (*models.Principal, error)
	HashPassword(password string) (string, error)
}

const maxUsernameAttempts = 20

// Directory is the database-backed PrincipalDirectory.
type Directory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewDirectory(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *Directory {
	return &Directory{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "directory"),
		now:         time.Now,
	}
}

func (d *Directory) repo() principals.Repository {
	return d.repomanager.Principals(d.db)
}

// FindPrincipalByIdentifier looks the identifier up as an email first and
// then as a username.
func (d *Directory) FindPrincipalByIdentifier(ctx context.Context, identifier string) (*models.Principal, error) {
	repo := d.repo()

	p, err := repo.FindByEmail(ctx, identifier)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrPrincipalNotFound) {
		return nil, err
	}

	return repo.FindByUsername(ctx, identifier)
}

func (d *Directory) FindPrincipalByID(ctx context.Context, id string) (*models.Principal, error) {
	return d.repo().FindByID(ctx, id)
}

func (d *Directory) VerifyCredentials(ctx context.Context, identifier, password string) (*models.Principal, error) {
	p, err := d.FindPrincipalByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrPrincipalNotFound) {
			// same hashing cost as a wrong password
			_, _ = cryptox.VerifyPassword(password, d.placeholderHash())
			return nil, common.ErrAuthenticationFailed
		}
		return nil, err
	}

	ok, err := cryptox.VerifyPassword(password, p.PasswordHash)
	if err != nil {
		d.logger.Error(ctx, "stored password hash is unreadable", "principal_id", p.ID, "error", err)
		return nil, common.ErrAuthenticationFailed
	}
	if !ok {
		return nil, common.ErrAuthenticationFailed
	}
	if !p.Active() {
		d.logger.Warn(ctx, "sign-in attempt on inactive account", "principal_id", p.ID,
			"blocked", p.Blocked, "deleted", p.Deleted)
		return nil, common.ErrAuthenticationFailed
	}

	return p, nil
}

func (d *Directory) placeholderHash() string {
	d.dummyOnce.Do(func() {
		h, err := cryptox.HashPassword("placeholder")
		if err == nil {
			d.dummyHash = h
		}
	})
	return d.dummyHash
}

func (d *Directory) TouchLastLogin(ctx context.Context, p *models.Principal) error {
	at := d.now().UTC()
	if err := d.repo().TouchLastLogin(ctx, p.ID, at); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	p.LastLoginAt = &at
	return nil
}

func (d *Directory) HashPassword(password string) (string, error) {
	return cryptox.HashPassword(password)
}

// CreatePrincipal registers a new account. The username is the local part of
// the email, with a random 0-99 suffix appended while it is already taken.
func (d *Directory) CreatePrincipal(ctx context.Context, email, passwordHash string, roles []string) (*models.Principal, error) {
	var created *models.Principal

	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := d.repomanager.Principals(tx)

		_, err := repo.FindByEmail(ctx, email)
		if err == nil {
			return common.ErrDuplicateEmail
		}
		if !errors.Is(err, common.ErrPrincipalNotFound) {
			return err
		}

		username, err := d.freeUsername(ctx, repo, email)
		if err != nil {
			return err
		}

		p, err := repo.Create(ctx, &models.Principal{
			Email:        email,
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    d.now().UTC(),
		})
		if err != nil {
			return err
		}

		for _, role := range roles {
			if err := repo.AssignRole(ctx, p.ID, role); err != nil {
				return err
			}
		}
		p.Roles = append([]string(nil), roles...)

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info(ctx, "principal created", "principal_id", created.ID, "username", created.Username)
	return created, nil
}

func (d *Directory) freeUsername(ctx context.Context, repo principals.Repository, email string) (string, error) {
	base := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		base = email[:i]
	}

	candidate := base
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		taken, err := repo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		n, err := cryptox.RandomIntn(100)
		if err != nil {
			return "", fmt.Errorf("username suffix: %w", err)
		}
		candidate = base + strconv.Itoa(n)
	}

	return "", fmt.Errorf("%w: no free username for %q", common.ErrDuplicateUsername, base)
}
