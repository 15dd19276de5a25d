// Package services contains server-side business logic: the session
// lifecycle (sign-in, sign-up, sign-out, refresh-token rotation) and the
// database-backed principal directory it relies on.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/cryptox"
	"github.com/echofyteam/echofy-auth/internal/dbx"
	"github.com/echofyteam/echofy-auth/internal/logging"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/refreshtokens"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// TokenIssuer is the part of auth.TokenIssuer the session service needs.
type TokenIssuer interface {
	GenerateToken(subject string, claims models.Claims, kind models.TokenKind) (string, error)
	IsValid(token, expectedSubject string, kind models.TokenKind) bool
	ExtractSubject(token string, kind models.TokenKind) (string, error)
	ComputeExpiry(kind models.TokenKind) time.Time
}

// SignUpResult is returned by SignUp: the first token pair and the public
// summary of the created principal.
type SignUpResult struct {
	Tokens    models.TokenPair
	Principal models.PrincipalSummary
}

// Options tunes a SessionService. Zero values fall back to defaults.
type Options struct {
	// StoreTimeout bounds the store and directory work of one operation.
	StoreTimeout time.Duration
	Now          func() time.Time
}

// SessionService coordinates sign-in, sign-up, sign-out and refresh.
//
// Refresh tokens are single use: refresh revokes the presented record and
// issues a new pair inside one transaction, and the revoke is a conditional
// update, so of two concurrent calls with the same token exactly one wins.
type SessionService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	issuer       TokenIssuer
	directory    PrincipalDirectory
	logger       logging.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, issuer TokenIssuer,
	directory PrincipalDirectory, logger logging.Logger, opts Options) *SessionService {

	s := &SessionService{
		db:           db,
		repomanager:  m,
		issuer:       issuer,
		directory:    directory,
		logger:       logger.With("module", "session"),
		storeTimeout: opts.StoreTimeout,
		now:          opts.Now,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = 5 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *SessionService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// SignIn verifies credentials, records the login and issues a token pair.
func (s *SessionService) SignIn(ctx context.Context, identifier, password string) (*models.TokenPair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.directory.VerifyCredentials(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, common.ErrAuthenticationFailed) {
			s.logger.Warn(ctx, "sign-in rejected")
			return nil, common.ErrAuthenticationFailed
		}
		s.logger.Error(ctx, "sign-in failed", "error", err)
		return nil, dbx.Classify(err)
	}

	if err := s.directory.TouchLastLogin(ctx, p); err != nil {
		s.logger.Error(ctx, "touch last login failed", "principal_id", p.ID, "error", err)
		return nil, dbx.Classify(err)
	}

	pair, err := s.issueSessionTokens(ctx, s.repomanager.RefreshTokens(s.db), p)
	if err != nil {
		s.logger.Error(ctx, "issuing tokens failed", "principal_id", p.ID, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "signed in", "principal_id", p.ID)
	return pair, nil
}

// SignUp creates a principal with the default role and issues its first pair.
// A confirmation mismatch is reported before anything is looked up or stored.
func (s *SessionService) SignUp(ctx context.Context, email, password, confirmPassword string) (*SignUpResult, error) {
	if password != confirmPassword {
		return nil, common.ErrPasswordMismatch
	}
	if err := validateSignUp(email, password); err != nil {
		return nil, err
	}

	hash, err := s.directory.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.directory.CreatePrincipal(ctx, email, hash, []string{common.DefaultRole})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			s.logger.Warn(ctx, "sign-up rejected: email taken")
			return nil, common.ErrDuplicateEmail
		}
		s.logger.Error(ctx, "sign-up failed", "error", err)
		return nil, dbx.Classify(err)
	}

	pair, err := s.issueSessionTokens(ctx, s.repomanager.RefreshTokens(s.db), p)
	if err != nil {
		s.logger.Error(ctx, "issuing tokens failed", "principal_id", p.ID, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "signed up", "principal_id", p.ID)
	return &SignUpResult{Tokens: *pair, Principal: p.Summary()}, nil
}

func validateSignUp(email, password string) error {
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email {
		return fmt.Errorf("%w: email must be a valid address", common.ErrValidation)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}
	return nil
}

// SignOut revokes the presented refresh token. It is not idempotent: a second
// call with the same value fails with common.ErrInvalidToken.
func (s *SessionService) SignOut(ctx context.Context, refreshToken string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.findUsable(ctx, refreshToken)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.revoke(ctx, s.repomanager.RefreshTokens(tx), rec)
	})
	if err != nil {
		s.logger.Warn(ctx, "sign-out failed", "token_id", rec.ID, "principal_id", rec.PrincipalID, "error", err)
		return dbx.Classify(err)
	}

	s.logger.Info(ctx, "signed out", "token_id", rec.ID, "principal_id", rec.PrincipalID)
	return nil
}

// Refresh rotates the presented refresh token: the old record is revoked and
// a new pair for the same principal is issued, or nothing changes at all.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.findUsable(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	p, err := s.directory.FindPrincipalByID(ctx, rec.PrincipalID)
	if err != nil {
		if errors.Is(err, common.ErrPrincipalNotFound) {
			s.logger.Warn(ctx, "refresh for missing principal", "token_id", rec.ID, "principal_id", rec.PrincipalID)
			return nil, common.ErrAuthenticationFailed
		}
		s.logger.Error(ctx, "principal lookup failed", "token_id", rec.ID, "error", err)
		return nil, dbx.Classify(err)
	}
	if !p.Active() {
		s.logger.Warn(ctx, "refresh for inactive principal", "token_id", rec.ID, "principal_id", p.ID)
		return nil, common.ErrAuthenticationFailed
	}

	var pair *models.TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)
		if err := s.revoke(ctx, repo, rec); err != nil {
			return err
		}

		var genErr error
		pair, genErr = s.issueSessionTokens(ctx, repo, p)
		return genErr
	})
	if err != nil {
		s.logger.Warn(ctx, "refresh failed", "token_id", rec.ID, "principal_id", p.ID, "error", err)
		return nil, dbx.Classify(err)
	}

	s.logger.Info(ctx, "refresh token rotated", "token_id", rec.ID, "principal_id", p.ID)
	return pair, nil
}

// ForgetPrincipal closes an account: the principal is soft-deleted and every
// refresh token it holds is removed in the same transaction. It returns the
// number of tokens removed.
func (s *SessionService) ForgetPrincipal(ctx context.Context, principalID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Principals(tx).MarkDeleted(ctx, principalID); err != nil {
			return err
		}

		var delErr error
		n, delErr = s.repomanager.RefreshTokens(tx).DeleteAllForPrincipal(ctx, principalID)
		return delErr
	})
	if err != nil {
		if errors.Is(err, common.ErrPrincipalNotFound) {
			s.logger.Warn(ctx, "forget principal: not found", "principal_id", principalID)
			return 0, common.ErrPrincipalNotFound
		}
		s.logger.Error(ctx, "forget principal failed", "principal_id", principalID, "error", err)
		return 0, dbx.Classify(err)
	}

	s.logger.Info(ctx, "principal removed", "principal_id", principalID, "deleted", n)
	return n, nil
}

// findUsable returns the record for value if it may still be presented.
func (s *SessionService) findUsable(ctx context.Context, value string) (*models.RefreshToken, error) {
	rec, err := s.repomanager.RefreshTokens(s.db).FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, common.ErrTokenNotFound) {
			s.logger.Warn(ctx, "unknown refresh token", "token_fp", cryptox.Fingerprint(value))
			return nil, common.ErrTokenNotFound
		}
		s.logger.Error(ctx, "refresh token lookup failed", "token_fp", cryptox.Fingerprint(value), "error", err)
		return nil, dbx.Classify(err)
	}

	if !rec.IsUsable(s.now()) {
		s.logger.Warn(ctx, "unusable refresh token presented", "token_id", rec.ID,
			"principal_id", rec.PrincipalID, "revoked", rec.Revoked)
		return nil, common.ErrInvalidToken
	}
	return rec, nil
}

// revoke performs the one-way transition; losing a race to another caller
// counts as an invalid token.
func (s *SessionService) revoke(ctx context.Context, repo refreshtokens.Repository, rec *models.RefreshToken) error {
	ok, err := repo.Revoke(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInvalidToken
	}
	return nil
}

// issueSessionTokens mints an access and a refresh token for p and stores the
// refresh record through repo.
func (s *SessionService) issueSessionTokens(ctx context.Context, repo refreshtokens.Repository, p *models.Principal) (*models.TokenPair, error) {
	claims := models.Claims{UserID: p.ID, Roles: p.Roles}

	access, err := s.issuer.GenerateToken(p.Email, claims, models.Access)
	if err != nil {
		return nil, fmt.Errorf("%w: generate access token: %v", common.ErrorInternal, err)
	}
	refresh, err := s.issuer.GenerateToken(p.Email, claims, models.Refresh)
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %v", common.ErrorInternal, err)
	}

	_, err = repo.Save(ctx, &models.RefreshToken{
		Token:       refresh,
		PrincipalID: p.ID,
		CreatedAt:   s.now(),
		ExpiresAt:   s.issuer.ComputeExpiry(models.Refresh),
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
