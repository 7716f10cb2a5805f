package grants

import (
	"context"

	"github.com/soclocker/soclocker/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, grant *models.AccessGrant) error

	// CountForUser returns the total number of grants held by username.
	CountForUser(ctx context.Context, username string) (int64, error)

	// ListForUser returns one page of the user's grants ordered by the
	// granted post's creation time, newest first.
	ListForUser(ctx context.Context, username string, limit, offset int64) ([]*models.AccessGrant, error)

	// ReaderUsernames returns every username holding a grant on the post.
	ReaderUsernames(ctx context.Context, postID int64) ([]string, error)
}
