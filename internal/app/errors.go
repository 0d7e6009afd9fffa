package app

import "errors"

var (
	// ErrInvalidCredentials is returned on any credential mismatch. The
	// message is shown to end users and must not reveal whether the username
	// or the password was wrong.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	ErrTitleRequired   = errors.New("title is required")
	ErrContentRequired = errors.New("content is required")
)
