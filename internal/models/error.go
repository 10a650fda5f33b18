package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound           = errors.New("user not found")
	ErrConflict           = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
)
