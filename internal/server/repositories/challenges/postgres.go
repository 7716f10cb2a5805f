package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/dbx"
	"github.com/soclocker/soclocker/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByPublicKey(ctx context.Context, publicKey string) (*models.Challenge, error) {
	query :=
		`SELECT public_key, expected_token, expires_at FROM challenges
		 WHERE public_key = $1
		 `

	c := &models.Challenge{}
	err := r.db.QueryRowContext(ctx, query, publicKey).Scan(&c.PublicKey, &c.ExpectedToken, &c.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

// CreateOrRefreshExpired relies on the unique public_key constraint so that
// two racing issuers cannot end up with two live secrets: the insert either
// wins, replaces an expired row, or leaves a live row untouched.
func (r *PostgresRepository) CreateOrRefreshExpired(ctx context.Context, challenge *models.Challenge) (bool, error) {
	query :=
		`INSERT INTO challenges (public_key, expected_token, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (public_key) DO UPDATE
		 SET expected_token = EXCLUDED.expected_token, expires_at = EXCLUDED.expires_at
		 WHERE challenges.expires_at < now()
		 RETURNING expected_token
		 `

	var token string
	err := r.db.QueryRowContext(ctx, query,
		challenge.PublicKey, challenge.ExpectedToken, challenge.ExpiresAt).Scan(&token)

	if err != nil {
		// No row returned means a live challenge already holds the slot.
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) DeleteByToken(ctx context.Context, expectedToken string) (int64, error) {
	query :=
		`DELETE FROM challenges
		 WHERE expected_token = $1
		 `

	res, err := r.db.ExecContext(ctx, query, expectedToken)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) MatchForUser(ctx context.Context, username, expectedToken string) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM challenges
		     INNER JOIN users ON users.public_key = challenges.public_key
		     WHERE users.username = $1 AND challenges.expected_token = $2
		 )`

	var ok bool
	err := r.db.QueryRowContext(ctx, query, username, expectedToken).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return ok, nil
}
