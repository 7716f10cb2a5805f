package posts

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

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {

	query :=
		`INSERT INTO posts (content, nonce, author_id, key_envelope, key_envelope_nonce)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, time_posted
		 `

	err := r.db.QueryRowContext(ctx, query,
		post.Content, post.Nonce, post.AuthorID, post.KeyEnvelope, post.KeyEnvelopeNonce).
		Scan(&post.ID, &post.TimePosted)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return post, nil
}

func (r *PostgresRepository) GetWithAuthor(ctx context.Context, postID int64) (*models.Post, *models.User, error) {
	query :=
		`SELECT p.id, p.content, p.nonce, p.author_id, p.time_posted, p.key_envelope, p.key_envelope_nonce,
		        u.id, u.public_key, u.username
		 FROM posts p
		 INNER JOIN users u ON u.id = p.author_id
		 WHERE p.id = $1
		 `

	post := &models.Post{}
	author := &models.User{}
	err := r.db.QueryRowContext(ctx, query, postID).Scan(
		&post.ID, &post.Content, &post.Nonce, &post.AuthorID, &post.TimePosted,
		&post.KeyEnvelope, &post.KeyEnvelopeNonce,
		&author.ID, &author.PublicKey, &author.Username)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}

	return post, author, nil
}

func (r *PostgresRepository) UpdateContent(ctx context.Context, postID int64, content, nonce string) error {
	query :=
		`UPDATE posts SET content = $1, nonce = $2
		 WHERE id = $3
		 `

	res, err := r.db.ExecContext(ctx, query, content, nonce, postID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
