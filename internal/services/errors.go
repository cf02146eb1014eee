package services

import "errors"

// ErrUnauthorized is returned by mutating operations called without a principal.
var ErrUnauthorized = errors.New("unauthorized")
