// Package common defines sentinel errors shared across the server layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrUnknownGrantee is returned by publish when a grantee username does
	// not resolve to a registered user. The whole publish transaction is
	// rolled back when this happens.
	ErrUnknownGrantee = errors.New("unknown grantee")
)
