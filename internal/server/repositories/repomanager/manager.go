package repomanager

import (
	"context"
	"database/sql"

	"github.com/soclocker/soclocker/internal/dbx"
	"github.com/soclocker/soclocker/internal/server/repositories/challenges"
	"github.com/soclocker/soclocker/internal/server/repositories/grants"
	"github.com/soclocker/soclocker/internal/server/repositories/posts"
	"github.com/soclocker/soclocker/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	Posts(db dbx.DBTX) posts.Repository
	Grants(db dbx.DBTX) grants.Repository
}
