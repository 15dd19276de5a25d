package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/dbx"
	"github.com/echofyteam/echofy-auth/internal/server/auth"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/principals"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- databases ---

// newTxDB returns an in-memory sqlite handle. The fakes ignore the handle,
// it only has to begin and commit transactions.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	i, err := auth.NewTokenIssuer(auth.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	return i
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- refresh token store ---

type memRefreshRepo struct {
	mu      sync.Mutex
	records map[string]*models.RefreshToken

	saveErr   error
	findErr   error
	revokeErr error
	deleteErr error

	// revokeLoses makes Revoke report that another caller got there first.
	revokeLoses bool
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{records: map[string]*models.RefreshToken{}}
}

func (r *memRefreshRepo) Save(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	if _, ok := r.records[rec.Token]; ok {
		return nil, common.ErrDuplicateToken
	}
	saved := *rec
	saved.ID = uuid.NewString()
	r.records[saved.Token] = &saved
	out := saved
	return &out, nil
}

func (r *memRefreshRepo) FindByValue(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[token]
	if !ok {
		return nil, common.ErrTokenNotFound
	}
	out := *rec
	return &out, nil
}

func (r *memRefreshRepo) Revoke(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revokeErr != nil {
		return false, r.revokeErr
	}
	if r.revokeLoses {
		return false, nil
	}
	for _, rec := range r.records {
		if rec.ID == id {
			if rec.Revoked {
				return false, nil
			}
			rec.Revoked = true
			return true, nil
		}
	}
	return false, nil
}

func (r *memRefreshRepo) deleteWhere(pred func(*models.RefreshToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.records {
		if pred(rec) {
			delete(r.records, k)
			n++
		}
	}
	return n
}

func (r *memRefreshRepo) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.deleteWhere(func(rec *models.RefreshToken) bool { return rec.ExpiresAt.Before(t) }), nil
}

func (r *memRefreshRepo) DeleteAllRevoked(ctx context.Context) (int64, error) {
	return r.deleteWhere(func(rec *models.RefreshToken) bool { return rec.Revoked }), nil
}

func (r *memRefreshRepo) DeleteAllForPrincipal(ctx context.Context, principalID string) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	return r.deleteWhere(func(rec *models.RefreshToken) bool { return rec.PrincipalID == principalID }), nil
}

func (r *memRefreshRepo) put(rec *models.RefreshToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.records[rec.Token] = rec
}

func (r *memRefreshRepo) get(token string) *models.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[token]
	if !ok {
		return nil
	}
	out := *rec
	return &out
}

func (r *memRefreshRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// --- repository manager ---

type fakeRepoManager struct {
	p principals.Repository
	r refreshtokens.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Principals(db dbx.DBTX) principals.Repository       { return m.p }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return m.r }

// --- principal directory ---

type fakeDirectory struct {
	mu         sync.Mutex
	principals map[string]*models.Principal // by id

	verifyErr   error
	findErr     error
	touchErr    error
	createErr   error
	createCalls int
	hashCalls   int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{principals: map[string]*models.Principal{}}
}

func (d *fakeDirectory) add(email, password string, roles ...string) *models.Principal {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &models.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     strings.SplitN(email, "@", 2)[0],
		PasswordHash: "hashed:" + password,
		Roles:        roles,
	}
	d.principals[p.ID] = p
	return p
}

func (d *fakeDirectory) lookup(identifier string) *models.Principal {
	for _, p := range d.principals {
		if p.Email == identifier || p.Username == identifier {
			return p
		}
	}
	return nil
}

func (d *fakeDirectory) VerifyCredentials(ctx context.Context, identifier, password string) (*models.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.verifyErr != nil {
		return nil, d.verifyErr
	}
	p := d.lookup(identifier)
	if p == nil || p.PasswordHash != "hashed:"+password || !p.Active() {
		return nil, common.ErrAuthenticationFailed
	}
	out := *p
	return &out, nil
}

func (d *fakeDirectory) FindPrincipalByIdentifier(ctx context.Context, identifier string) (*models.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	p := d.lookup(identifier)
	if p == nil {
		return nil, common.ErrPrincipalNotFound
	}
	out := *p
	return &out, nil
}

func (d *fakeDirectory) FindPrincipalByID(ctx context.Context, id string) (*models.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	p, ok := d.principals[id]
	if !ok {
		return nil, common.ErrPrincipalNotFound
	}
	out := *p
	return &out, nil
}

func (d *fakeDirectory) TouchLastLogin(ctx context.Context, p *models.Principal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.touchErr != nil {
		return d.touchErr
	}
	now := time.Now()
	p.LastLoginAt = &now
	if stored, ok := d.principals[p.ID]; ok {
		stored.LastLoginAt = &now
	}
	return nil
}

func (d *fakeDirectory) CreatePrincipal(ctx context.Context, email, passwordHash string, roles []string) (*models.Principal, error) {
	d.mu.Lock()
	d.createCalls++
	if d.createErr != nil {
		d.mu.Unlock()
		return nil, d.createErr
	}
	if d.lookup(email) != nil {
		d.mu.Unlock()
		return nil, common.ErrDuplicateEmail
	}
	d.mu.Unlock()

	p := d.add(email, strings.TrimPrefix(passwordHash, "hashed:"), roles...)
	out := *p
	return &out, nil
}

func (d *fakeDirectory) HashPassword(password string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hashCalls++
	return "hashed:" + password, nil
}

func (d *fakeDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.principals)
}
