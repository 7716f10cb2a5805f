// Package cryptox wraps the NaCl box primitive (curve25519-xsalsa20-poly1305)
// used for all sealing in the system: challenge tokens sent to users and the
// envelopes clients build around post content keys. The server never opens
// client envelopes; it only seals challenges and serves sealed blobs.
package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the byte length of curve25519 public and secret keys.
	KeySize = 32

	// NonceSize is the byte length of a box nonce.
	NonceSize = 24

	// TokenSize is the byte length of a challenge token. The larger the
	// value, the harder the bruteforce.
	TokenSize = 32
)

// ErrDecrypt is returned when an authenticated open fails.
var ErrDecrypt = errors.New("decryption failed")

// GenerateKeypair creates a new box keypair from crypto/rand.
func GenerateKeypair() (publicKey, secretKey *[KeySize]byte, err error) {
	return box.GenerateKey(rand.Reader)
}

// GenerateNonce returns a fresh random nonce. A nonce must never be reused
// with the same keypair, which is why challenges are re-sealed with a new
// nonce on every request.
func GenerateNonce() (*[NonceSize]byte, error) {
	nonce := &[NonceSize]byte{}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return nonce, nil
}

// RandomToken returns TokenSize bytes of cryptographically secure randomness.
func RandomToken() ([]byte, error) {
	token := make([]byte, TokenSize)
	if _, err := rand.Read(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Seal encrypts and authenticates message for peerPublic using ownSecret.
// The opener must hold the matching secret key and know the sealer's public
// key (authenticated sealing, not anonymous).
func Seal(message []byte, nonce *[NonceSize]byte, peerPublic, ownSecret *[KeySize]byte) []byte {
	return box.Seal(nil, message, nonce, peerPublic, ownSecret)
}

// Open authenticates and decrypts ciphertext sealed by peerPublic for the
// holder of ownSecret. Returns ErrDecrypt if authentication fails.
func Open(ciphertext []byte, nonce *[NonceSize]byte, peerPublic, ownSecret *[KeySize]byte) ([]byte, error) {
	plaintext, ok := box.Open(nil, ciphertext, nonce, peerPublic, ownSecret)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// EncodeKey renders a key as standard base64, the transport form used by the
// wire protocol and the database.
func EncodeKey(key *[KeySize]byte) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

// DecodeKey parses a base64 key into its fixed-size form.
func DecodeKey(s string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != KeySize {
		return nil, errors.New("invalid key length")
	}
	key := &[KeySize]byte{}
	copy(key[:], raw)
	return key, nil
}

// DecodeNonce parses a base64 nonce into its fixed-size form.
func DecodeNonce(s string) (*[NonceSize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != NonceSize {
		return nil, errors.New("invalid nonce length")
	}
	nonce := &[NonceSize]byte{}
	copy(nonce[:], raw)
	return nonce, nil
}
