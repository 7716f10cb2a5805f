package models

// AccessGrant (historically "NOA", notice of access) conveys one user's
// sealed copy of a post's content key. The (PostID, UserID) pair is unique;
// grants are created in a batch at publish time and never mutated.
type AccessGrant struct {
	PostID     int64
	UserID     int64
	WrappedKey string
	Nonce      string
}
