package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/files"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/folders"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/meta"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/roles"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/users"
)

// RepositoryManager vends catalog repositories bound to a DBTX, so the same
// code runs against a pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
	Files(db dbx.DBTX) files.Repository
	Folders(db dbx.DBTX) folders.Repository
	Roles(db dbx.DBTX) roles.Repository
	Meta(db dbx.DBTX) meta.Repository
}
