package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentUpdate is returned when an optimistic-concurrency check
	// fails: the record changed between load and save
	ErrConcurrentUpdate = errors.New("record was modified concurrently")

	// ErrDuplicateEmail is returned when trying to create a user with an
	// email that already exists in the tenant
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateIdentity is returned when trying to link an external
	// identity that is already linked
	ErrDuplicateIdentity = errors.New("external identity already linked")
)
