package repomanager

import (
	"context"
	"database/sql"

	"github.com/echofyteam/echofy-auth/internal/dbx"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/principals"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Principals(db dbx.DBTX) principals.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
