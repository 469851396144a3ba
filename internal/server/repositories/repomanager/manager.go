package repomanager

import (
	"context"
	"database/sql"

	"github.com/tablescout/tablescout/internal/dbx"
	"github.com/tablescout/tablescout/internal/server/repositories/establishments"
	"github.com/tablescout/tablescout/internal/server/repositories/refreshtokens"
	"github.com/tablescout/tablescout/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works against the pool and inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Establishments(db dbx.DBTX) establishments.Repository
}
