package model

import "errors"

var (
	ErrNotFound = errors.New("not found")

	ErrLocked             = errors.New("account temporarily locked")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRateLimited        = errors.New("too many requests")

	ErrEmailTaken       = errors.New("email already registered")
	ErrPasswordMismatch = errors.New("password confirmation does not match")
)
