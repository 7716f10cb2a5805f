package grants

import (
	"context"
	"fmt"

	"github.com/soclocker/soclocker/internal/dbx"
	"github.com/soclocker/soclocker/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, grant *models.AccessGrant) error {

	query :=
		`INSERT INTO access_grants (post_id, user_id, wrapped_key, nonce)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query,
		grant.PostID, grant.UserID, grant.WrappedKey, grant.Nonce)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CountForUser(ctx context.Context, username string) (int64, error) {
	query :=
		`SELECT count(g.post_id)
		 FROM access_grants g
		 INNER JOIN users u ON u.id = g.user_id
		 WHERE u.username = $1
		 `

	var n int64
	err := r.db.QueryRowContext(ctx, query, username).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, username string, limit, offset int64) ([]*models.AccessGrant, error) {
	query :=
		`SELECT g.post_id, g.user_id, g.wrapped_key, g.nonce
		 FROM access_grants g
		 INNER JOIN users u ON u.id = g.user_id
		 INNER JOIN posts p ON p.id = g.post_id
		 WHERE u.username = $1
		 ORDER BY p.time_posted DESC
		 LIMIT $2 OFFSET $3
		 `

	rows, err := r.db.QueryContext(ctx, query, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessGrant
	for rows.Next() {
		g := &models.AccessGrant{}
		if err := rows.Scan(&g.PostID, &g.UserID, &g.WrappedKey, &g.Nonce); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) ReaderUsernames(ctx context.Context, postID int64) ([]string, error) {
	query :=
		`SELECT u.username
		 FROM access_grants g
		 INNER JOIN users u ON u.id = g.user_id
		 WHERE g.post_id = $1
		 ORDER BY u.username
		 `

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var readers []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		readers = append(readers, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return readers, nil
}
