package auth

import "errors"

// Auth-specific errors
var (
	ErrCredentialsRequired = errors.New("Username and password required")
	ErrPasswordTooShort    = errors.New("Password must be at least 6 characters")
	ErrUsernameExists      = errors.New("Username already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrRevocationDisabled  = errors.New("session revocation is disabled")
)
