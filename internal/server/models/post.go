package models

import "time"

// Post is a published item of encrypted content. Content and Nonce are
// replaceable by the author through an authenticated edit; everything else is
// immutable after creation.
//
// KeyEnvelope carries the post's content key sealed so only the author can
// open it (the self-envelope); the server stores and serves it unmodified.
type Post struct {
	ID               int64
	Content          string
	Nonce            string
	AuthorID         int64
	TimePosted       time.Time
	KeyEnvelope      string
	KeyEnvelopeNonce string
}
