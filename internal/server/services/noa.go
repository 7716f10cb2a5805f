package services

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/logging"
	"github.com/soclocker/soclocker/internal/server/models"
	"github.com/soclocker/soclocker/internal/server/repositories/repomanager"
)

// PageSize is the fixed number of access entries per listing page.
const PageSize = 25

// AccessEntry is one post the requesting user holds a grant for: the post,
// its author, the user's sealed copy of the content key, and every username
// holding a grant on the same post. The reader list is deliberately public;
// there is no access-list privacy.
type AccessEntry struct {
	Post       *models.Post
	Author     *models.User
	WrappedKey string
	Nonce      string
	AllReaders []string
}

// AccessPage is one page of a user's accessible posts plus the total page
// count for that user.
type AccessPage struct {
	Entries []*AccessEntry
	Pages   int64
}

// NOAService lists the posts a user can access, built on the grant data the
// envelope engine writes. "NOA" (notice of access) is the historical name for
// an access grant.
type NOAService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger

	// droppedEntries counts listing entries skipped because the granted post
	// was missing; a nonzero value indicates referential drift.
	droppedEntries atomic.Int64
}

func NewNOAService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *NOAService {
	return &NOAService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "noa_service"),
	}
}

// ListAccessible returns one page of the posts username holds a grant for,
// newest post first. Page numbering starts at 0; the offset into the grant
// list is page*PageSize.
//
// A grant whose post cannot be fetched is dropped from the page rather than
// failing the whole request. That resilience is deliberate, but each drop is
// logged and counted because it means a grant outlived its post.
func (s *NOAService) ListAccessible(ctx context.Context, username string, page int64) (*AccessPage, error) {
	grantRepo := s.repomanager.Grants(s.db)
	postRepo := s.repomanager.Posts(s.db)

	total, err := grantRepo.CountForUser(ctx, username)
	if err != nil {
		return nil, err
	}

	pages := total / PageSize
	if total%PageSize != 0 {
		pages++
	}

	granted, err := grantRepo.ListForUser(ctx, username, PageSize, page*PageSize)
	if err != nil {
		return nil, err
	}

	entries := make([]*AccessEntry, 0, len(granted))
	for _, g := range granted {
		post, author, err := postRepo.GetWithAuthor(ctx, g.PostID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.droppedEntries.Add(1)
				s.logger.Warn(ctx, "dropping grant with missing post",
					"post_id", g.PostID, "username", username,
					"dropped_total", s.droppedEntries.Load())
				continue
			}
			return nil, err
		}

		readers, err := grantRepo.ReaderUsernames(ctx, g.PostID)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &AccessEntry{
			Post:       post,
			Author:     author,
			WrappedKey: g.WrappedKey,
			Nonce:      g.Nonce,
			AllReaders: readers,
		})
	}

	return &AccessPage{Entries: entries, Pages: pages}, nil
}

// DroppedEntries reports how many listing entries have been skipped since
// startup because of missing posts.
func (s *NOAService) DroppedEntries() int64 {
	return s.droppedEntries.Load()
}
