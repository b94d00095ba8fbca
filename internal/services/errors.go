package services

import "errors"

var (
	// ErrDuplicateLoginID is returned when a signup collides on login id.
	ErrDuplicateLoginID = errors.New("login id already in use")

	// ErrDuplicateEmail is returned when a signup collides on email.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrInvalidCredentials is returned for login failures. The same error
	// covers a missing user and a password mismatch so responses cannot be
	// used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid login id or password")

	// ErrForbidden is returned when a user mutates a post they do not own.
	ErrForbidden = errors.New("forbidden")
)
