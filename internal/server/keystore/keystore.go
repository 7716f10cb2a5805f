// Package keystore persists the server's box keypair so that the public key
// stays stable for the lifetime of a deployment. Previously sealed challenges
// and clients that cache the server public key both depend on this; the
// keypair is generated exactly once and reloaded on every restart.
//
// Secret key bytes must never be logged or otherwise exposed; only the
// public key is safe to print.
package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soclocker/soclocker/internal/common"
	"github.com/soclocker/soclocker/internal/cryptox"
)

// Keypair is the server's long-lived box keypair.
type Keypair struct {
	Public *[cryptox.KeySize]byte
	Secret *[cryptox.KeySize]byte
}

// Keystore loads and saves the server keypair from a process-external store.
type Keystore interface {
	// Load returns the stored keypair, or common.ErrorNotFound if none has
	// been created yet.
	Load(ctx context.Context) (*Keypair, error)

	// Save persists the keypair.
	Save(ctx context.Context, kp *Keypair) error
}

// LoadOrCreate returns the stored keypair, generating and persisting a new
// one only when the store holds none. This is the init-once lifecycle: after
// first deployment the keypair is never regenerated.
func LoadOrCreate(ctx context.Context, ks Keystore) (*Keypair, error) {
	kp, err := ks.Load(ctx)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("loading server keypair: %w", err)
	}

	pub, sec, err := cryptox.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generating server keypair: %w", err)
	}
	kp = &Keypair{Public: pub, Secret: sec}

	if err := ks.Save(ctx, kp); err != nil {
		return nil, fmt.Errorf("saving server keypair: %w", err)
	}

	return kp, nil
}

// keypairDTO is the serialized form; both keys are standard base64.
type keypairDTO struct {
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key"`
}

func marshalKeypair(kp *Keypair) ([]byte, error) {
	return json.Marshal(&keypairDTO{
		PublicKey: cryptox.EncodeKey(kp.Public),
		SecretKey: cryptox.EncodeKey(kp.Secret),
	})
}

func unmarshalKeypair(data []byte) (*Keypair, error) {
	dto := &keypairDTO{}
	if err := json.Unmarshal(data, dto); err != nil {
		return nil, err
	}
	pub, err := cryptox.DecodeKey(dto.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	sec, err := cryptox.DecodeKey(dto.SecretKey)
	if err != nil {
		return nil, errors.New("invalid secret key")
	}
	return &Keypair{Public: pub, Secret: sec}, nil
}
