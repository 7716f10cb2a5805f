package challenges

import (
	"context"

	"github.com/soclocker/soclocker/internal/server/models"
)

type Repository interface {
	// GetByPublicKey returns the outstanding challenge for a public key, or
	// common.ErrorNotFound when none exists.
	GetByPublicKey(ctx context.Context, publicKey string) (*models.Challenge, error)

	// CreateOrRefreshExpired atomically inserts the challenge, or replaces an
	// existing one whose validity window has lapsed. When a live challenge
	// already exists the call reports refreshed=false and the caller should
	// re-read the current row; this makes concurrent issuance converge on a
	// single secret.
	CreateOrRefreshExpired(ctx context.Context, challenge *models.Challenge) (refreshed bool, err error)

	// DeleteByToken removes the challenge holding the given expected token,
	// returning the number of rows deleted.
	DeleteByToken(ctx context.Context, expectedToken string) (int64, error)

	// MatchForUser reports whether a challenge exists whose expected token
	// equals the supplied one and whose public key belongs to username.
	MatchForUser(ctx context.Context, username, expectedToken string) (bool, error)
}
