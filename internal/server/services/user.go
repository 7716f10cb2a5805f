package services

import (
	"context"
	"database/sql"

	"github.com/soclocker/soclocker/internal/server/models"
	"github.com/soclocker/soclocker/internal/server/repositories/repomanager"
)

// UserService handles registration and user lookup. Registration stores only
// a username and an encryption public key; there are no passwords and no
// server-held secrets per user.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// Register creates a new user. Returns common.ErrorConflict when the
// username is already taken; usernames are case-sensitive and immutable.
func (s *UserService) Register(ctx context.Context, publicKey, username string) (*models.User, error) {
	user := &models.User{PublicKey: publicKey, Username: username}
	return s.repomanager.Users(s.db).Create(ctx, user)
}

// GetByUsername returns the registered user, or common.ErrorNotFound.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByUsername(ctx, username)
}
