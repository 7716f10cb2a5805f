// Package services contains the server-side business logic: the
// challenge-response authentication protocol, post publication with
// per-reader envelopes, and the paginated access listing.
package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/cryptox"
	"github.com/soclocker/soclocker/internal/dbx"
	"github.com/soclocker/soclocker/internal/server/keystore"
	"github.com/soclocker/soclocker/internal/server/models"
	"github.com/soclocker/soclocker/internal/server/repositories/repomanager"
)

// ChallengeEnvelope is the sealed challenge returned to a client: the current
// challenge token encrypted under the user's public key and the server's
// secret key, plus the nonce used for that seal.
type ChallengeEnvelope struct {
	EncryptedToken string
	Nonce          string
}

// AuthService implements the challenge-response protocol. Possession of the
// private key matching a registered public key is proven by decrypting a
// sealed random token and echoing it back; each successful proof consumes
// the challenge.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keypair     *keystore.Keypair
	validity    time.Duration
}

// NewAuthService constructs an AuthService around the server keypair and the
// configured challenge validity window.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, kp *keystore.Keypair, validity time.Duration) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		keypair:     kp,
		validity:    validity,
	}
}

// RequestChallenge returns the user's current challenge, sealed with a fresh
// nonce. If no challenge exists, or the existing one has expired, a new
// random token is persisted first (the expired predecessor is replaced in the
// same statement).
//
// The loop below runs at most twice: the second pass only happens when this
// caller lost an issuance race, and the winner's challenge is by definition
// live. Re-sealing with a fresh nonce on every call is required because box
// sealing is not safely reusable across nonces.
//
// Returns common.ErrorNotFound when the username is not registered.
func (s *AuthService) RequestChallenge(ctx context.Context, username string) (*ChallengeEnvelope, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Challenges(s.db)

	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now()

		challenge, err := repo.GetByPublicKey(ctx, user.PublicKey)
		if err == nil && !challenge.Expired(now) {
			return s.seal(user, challenge)
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}

		token, err := cryptox.RandomToken()
		if err != nil {
			return nil, fmt.Errorf("generating challenge token: %w", err)
		}

		candidate := &models.Challenge{
			PublicKey:     user.PublicKey,
			ExpectedToken: base64.StdEncoding.EncodeToString(token),
			ExpiresAt:     now.Add(s.validity),
		}

		refreshed, err := repo.CreateOrRefreshExpired(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if refreshed {
			return s.seal(user, candidate)
		}
		// Lost the race: a concurrent caller installed a live challenge.
		// The next pass reads and re-seals theirs.
	}

	return nil, common.ErrorInternal
}

// Validate reports whether proof matches the user's outstanding challenge
// token, compared as opaque strings. On success the challenge is deleted:
// each proof is single-use, and a new proof requires a fresh
// RequestChallenge. Expiry is not checked here; it is enforced lazily at
// issuance time.
func (s *AuthService) Validate(ctx context.Context, username, proof string) (bool, error) {
	var valid bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		valid, err = s.ValidateWith(ctx, tx, username, proof)
		return err
	})
	if err != nil {
		return false, err
	}
	return valid, nil
}

// ValidateWith is Validate running against the caller's transaction handle,
// so that publish and edit can consume the proof atomically with their own
// writes.
func (s *AuthService) ValidateWith(ctx context.Context, tx dbx.DBTX, username, proof string) (bool, error) {
	repo := s.repomanager.Challenges(tx)

	valid, err := repo.MatchForUser(ctx, username, proof)
	if err != nil {
		return false, err
	}
	if !valid {
		return false, nil
	}

	if _, err := repo.DeleteByToken(ctx, proof); err != nil {
		return false, err
	}

	return true, nil
}

// seal encrypts the challenge token for the user under a fresh nonce.
func (s *AuthService) seal(user *models.User, challenge *models.Challenge) (*ChallengeEnvelope, error) {
	userPublic, err := cryptox.DecodeKey(user.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid user public key: %w", err)
	}

	token, err := base64.StdEncoding.DecodeString(challenge.ExpectedToken)
	if err != nil {
		return nil, fmt.Errorf("invalid stored token: %w", err)
	}

	nonce, err := cryptox.GenerateNonce()
	if err != nil {
		return nil, err
	}

	sealed := cryptox.Seal(token, nonce, userPublic, s.keypair.Secret)

	return &ChallengeEnvelope{
		EncryptedToken: base64.StdEncoding.EncodeToString(sealed),
		Nonce:          base64.StdEncoding.EncodeToString(nonce[:]),
	}, nil
}

// PublicKey returns the server's base64 public key, stable for the lifetime
// of the deployment.
func (s *AuthService) PublicKey() string {
	return cryptox.EncodeKey(s.keypair.Public)
}
