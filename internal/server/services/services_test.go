package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/dbx"
	"github.com/soclocker/soclocker/internal/logging"
	"github.com/soclocker/soclocker/internal/server/models"
	challengesrepo "github.com/soclocker/soclocker/internal/server/repositories/challenges"
	grantsrepo "github.com/soclocker/soclocker/internal/server/repositories/grants"
	postsrepo "github.com/soclocker/soclocker/internal/server/repositories/posts"
	usersrepo "github.com/soclocker/soclocker/internal/server/repositories/users"
)

// --- in-memory fixture shared by the service tests ---

type fixture struct {
	users      map[string]*models.User      // by username
	challenges map[string]*models.Challenge // by public key
	posts      map[int64]*models.Post
	grants     []*models.AccessGrant
	nextUserID int64
	nextPostID int64
}

func newFixture() *fixture {
	return &fixture{
		users:      map[string]*models.User{},
		challenges: map[string]*models.Challenge{},
		posts:      map[int64]*models.Post{},
	}
}

func (f *fixture) addUser(username, publicKey string) *models.User {
	f.nextUserID++
	u := &models.User{ID: f.nextUserID, PublicKey: publicKey, Username: username}
	f.users[username] = u
	return u
}

func (f *fixture) userByID(id int64) *models.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

type fakeUsersRepo struct{ f *fixture }

func (r *fakeUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := r.f.users[user.Username]; ok {
		return nil, common.ErrorConflict
	}
	return r.f.addUser(user.Username, user.PublicKey), nil
}

func (r *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := r.f.users[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeChallengesRepo struct{ f *fixture }

func (r *fakeChallengesRepo) GetByPublicKey(ctx context.Context, publicKey string) (*models.Challenge, error) {
	c, ok := r.f.challenges[publicKey]
	if !ok {
		return nil, common.ErrorNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *fakeChallengesRepo) CreateOrRefreshExpired(ctx context.Context, challenge *models.Challenge) (bool, error) {
	existing, ok := r.f.challenges[challenge.PublicKey]
	if ok && !existing.Expired(time.Now()) {
		return false, nil
	}
	clone := *challenge
	r.f.challenges[challenge.PublicKey] = &clone
	return true, nil
}

func (r *fakeChallengesRepo) DeleteByToken(ctx context.Context, expectedToken string) (int64, error) {
	for pk, c := range r.f.challenges {
		if c.ExpectedToken == expectedToken {
			delete(r.f.challenges, pk)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeChallengesRepo) MatchForUser(ctx context.Context, username, expectedToken string) (bool, error) {
	u, ok := r.f.users[username]
	if !ok {
		return false, nil
	}
	c, ok := r.f.challenges[u.PublicKey]
	return ok && c.ExpectedToken == expectedToken, nil
}

type fakePostsRepo struct{ f *fixture }

func (r *fakePostsRepo) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	r.f.nextPostID++
	post.ID = r.f.nextPostID
	post.TimePosted = time.Now().Add(time.Duration(post.ID) * time.Millisecond)
	clone := *post
	r.f.posts[post.ID] = &clone
	return post, nil
}

func (r *fakePostsRepo) GetWithAuthor(ctx context.Context, postID int64) (*models.Post, *models.User, error) {
	p, ok := r.f.posts[postID]
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	author := r.f.userByID(p.AuthorID)
	if author == nil {
		return nil, nil, common.ErrorNotFound
	}
	clone := *p
	return &clone, author, nil
}

func (r *fakePostsRepo) UpdateContent(ctx context.Context, postID int64, content, nonce string) error {
	p, ok := r.f.posts[postID]
	if !ok {
		return common.ErrorNotFound
	}
	p.Content = content
	p.Nonce = nonce
	return nil
}

type fakeGrantsRepo struct{ f *fixture }

func (r *fakeGrantsRepo) Create(ctx context.Context, grant *models.AccessGrant) error {
	clone := *grant
	r.f.grants = append(r.f.grants, &clone)
	return nil
}

func (r *fakeGrantsRepo) CountForUser(ctx context.Context, username string) (int64, error) {
	u, ok := r.f.users[username]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, g := range r.f.grants {
		if g.UserID == u.ID {
			n++
		}
	}
	return n, nil
}

func (r *fakeGrantsRepo) ListForUser(ctx context.Context, username string, limit, offset int64) ([]*models.AccessGrant, error) {
	u, ok := r.f.users[username]
	if !ok {
		return nil, nil
	}
	var mine []*models.AccessGrant
	for _, g := range r.f.grants {
		if g.UserID == u.ID {
			mine = append(mine, g)
		}
	}
	// newest post first, mirroring the SQL ordering
	sort.SliceStable(mine, func(i, j int) bool {
		pi, pj := r.f.posts[mine[i].PostID], r.f.posts[mine[j].PostID]
		if pi == nil || pj == nil {
			return pi != nil
		}
		return pi.TimePosted.After(pj.TimePosted)
	})
	if offset >= int64(len(mine)) {
		return nil, nil
	}
	mine = mine[offset:]
	if int64(len(mine)) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

func (r *fakeGrantsRepo) ReaderUsernames(ctx context.Context, postID int64) ([]string, error) {
	var readers []string
	for _, g := range r.f.grants {
		if g.PostID == postID {
			if u := r.f.userByID(g.UserID); u != nil {
				readers = append(readers, u.Username)
			}
		}
	}
	sort.Strings(readers)
	return readers, nil
}

type fakeRepoManager struct{ f *fixture }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository {
	return &fakeUsersRepo{f: m.f}
}

func (m *fakeRepoManager) Challenges(db dbx.DBTX) challengesrepo.Repository {
	return &fakeChallengesRepo{f: m.f}
}

func (m *fakeRepoManager) Posts(db dbx.DBTX) postsrepo.Repository {
	return &fakePostsRepo{f: m.f}
}

func (m *fakeRepoManager) Grants(db dbx.DBTX) grantsrepo.Repository {
	return &fakeGrantsRepo{f: m.f}
}

// --- common helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
