package models

import "time"

// Challenge is the single outstanding authentication challenge for a user,
// keyed by the user's public key. ExpectedToken is the base64 form of the
// random secret the client must echo back after decrypting it.
//
// A challenge is consumed (deleted) on successful validation and lazily
// purged on the next issuance after ExpiresAt has passed.
type Challenge struct {
	PublicKey     string
	ExpectedToken string
	ExpiresAt     time.Time
}

// Expired reports whether the challenge validity window has lapsed at now.
func (c *Challenge) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}
