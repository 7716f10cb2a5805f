// Package models contains the database row types shared by repositories and
// services. All cryptographic material is stored in its base64 transport form.
package models

// User is a registered identity: a username aliased to an encryption public
// key. Both are immutable after registration; the server never stores
// passwords or private keys.
type User struct {
	ID        int64
	PublicKey string
	Username  string
}
