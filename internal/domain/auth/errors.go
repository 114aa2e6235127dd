package auth

import "errors"

// ErrEmailExists indicates a duplicate email address.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidCredentials indicates a failed login or key lookup.
var ErrInvalidCredentials = errors.New("invalid credentials")
