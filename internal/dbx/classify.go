package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsTransient reports whether err is a timeout or connectivity failure
// rather than a definitive answer from the database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrTransientStoreFailure) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// Classify wraps transient failures with common.ErrTransientStoreFailure so
// callers can tell them apart from "not found" or "invalid" outcomes.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, common.ErrTransientStoreFailure) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", common.ErrTransientStoreFailure, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
