package app

import "errors"

var (
	// ErrRegistrationRejected is returned when the store refuses the new
	// user row (duplicate email or schema violation). Uniqueness is not
	// pre-checked; two racing registrations both reach the store and one
	// loses here.
	ErrRegistrationRejected = errors.New("registration rejected by store")

	// ErrUserNotFound is returned by login when no account matches the email.
	ErrUserNotFound = errors.New("user does not exist")

	// ErrWrongPassword is returned by login when the password does not match.
	ErrWrongPassword = errors.New("password incorrect")

	// ErrCreationNotFound is returned by update when the target id is unknown.
	ErrCreationNotFound = errors.New("creation not found")

	// ErrNotOwner is returned when a caller tries to mutate a creation it
	// does not own. Handlers map this to 403 Forbidden.
	ErrNotOwner = errors.New("caller does not own this creation")

	// ErrTooManyFiles is returned when an upload batch exceeds the per-request
	// file limit.
	ErrTooManyFiles = errors.New("too many files in upload batch")

	// ErrUploadFailed is returned when any file in a batch fails to store.
	// The batch is all-or-nothing from the client's perspective; blobs
	// written before the failure are not rolled back.
	ErrUploadFailed = errors.New("failed to upload files")
)
