package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/dbx"
	"github.com/soclocker/soclocker/internal/server/models"
	"github.com/soclocker/soclocker/internal/server/repositories/repomanager"
)

// Grantee names one user being granted access to a post, together with the
// post's content key sealed for that user and the nonce of the seal.
type Grantee struct {
	Username   string
	WrappedKey string
	Nonce      string
}

// PublishRequest carries everything the client supplies at publish time. All
// cryptographic fields arrive already sealed; the server stores them
// unmodified and never holds a content key in the clear.
type PublishRequest struct {
	Username         string
	Proof            string
	Content          string
	Nonce            string
	KeyEnvelope      string
	KeyEnvelopeNonce string
	Grantees         []Grantee
}

// PostService is the envelope access-control engine: it creates posts with
// their per-reader grants and applies authenticated edits. Its only
// cryptographic responsibility is enforcing that a valid proof precedes any
// write.
type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	auth        *AuthService
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, auth *AuthService) *PostService {
	return &PostService{db: db, repomanager: m, auth: auth}
}

// Publish validates the author's proof, creates the post, and creates one
// access grant per grantee. The whole operation runs in one transaction: a
// grantee username that does not resolve aborts and rolls back everything,
// surfacing ErrUnknownGrantee rather than leaving a partially granted post
// behind.
//
// Returns common.ErrorUnauthorized when the proof is wrong or absent, and
// common.ErrorNotFound when the author is not registered.
func (s *PostService) Publish(ctx context.Context, req *PublishRequest) (int64, error) {
	var postID int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		valid, err := s.auth.ValidateWith(ctx, tx, req.Username, req.Proof)
		if err != nil {
			return err
		}
		if !valid {
			return common.ErrorUnauthorized
		}

		userRepo := s.repomanager.Users(tx)

		author, err := userRepo.GetByUsername(ctx, req.Username)
		if err != nil {
			return err
		}

		post, err := s.repomanager.Posts(tx).Create(ctx, &models.Post{
			Content:          req.Content,
			Nonce:            req.Nonce,
			AuthorID:         author.ID,
			KeyEnvelope:      req.KeyEnvelope,
			KeyEnvelopeNonce: req.KeyEnvelopeNonce,
		})
		if err != nil {
			return err
		}
		postID = post.ID

		grantRepo := s.repomanager.Grants(tx)
		for _, g := range req.Grantees {
			grantee, err := userRepo.GetByUsername(ctx, g.Username)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("%w: %s", common.ErrUnknownGrantee, g.Username)
				}
				return err
			}

			err = grantRepo.Create(ctx, &models.AccessGrant{
				PostID:     post.ID,
				UserID:     grantee.ID,
				WrappedKey: g.WrappedKey,
				Nonce:      g.Nonce,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return postID, nil
}

// Edit replaces a post's content and nonce after validating a fresh proof
// from the post's author. The key envelope and the existing grants are
// untouched: edits do not re-key or revoke access.
//
// Returns common.ErrorNotFound when the post does not exist and
// common.ErrorUnauthorized when the proof fails.
func (s *PostService) Edit(ctx context.Context, postID int64, proof, newContent, newNonce string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		postRepo := s.repomanager.Posts(tx)

		_, author, err := postRepo.GetWithAuthor(ctx, postID)
		if err != nil {
			return err
		}

		valid, err := s.auth.ValidateWith(ctx, tx, author.Username, proof)
		if err != nil {
			return err
		}
		if !valid {
			return common.ErrorUnauthorized
		}

		return postRepo.UpdateContent(ctx, postID, newContent, newNonce)
	})
}
