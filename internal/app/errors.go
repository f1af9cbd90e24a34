package app

import "errors"

var (
	// ErrUnknownUser is returned when no admin exists for the username.
	// The message is shown on the login form as-is.
	ErrUnknownUser = errors.New("Username unknown.")

	// ErrInvalidPassword is returned when the password does not match.
	ErrInvalidPassword = errors.New("Invalid password.")

	// ErrDuplicateBookID is returned when add-book targets an existing ID.
	ErrDuplicateBookID = errors.New("Book ID already exists. Please choose a different ID.")
)
