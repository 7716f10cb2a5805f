package posts

import (
	"context"

	"github.com/soclocker/soclocker/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)

	// GetWithAuthor returns the post together with its author's user row, or
	// common.ErrorNotFound when the post does not exist.
	GetWithAuthor(ctx context.Context, postID int64) (*models.Post, *models.User, error)

	// UpdateContent replaces the post's content and nonce in place. The key
	// envelope and grants are untouched. Returns common.ErrorNotFound when no
	// row matched.
	UpdateContent(ctx context.Context, postID int64, content, nonce string) error
}
