package domain

import "errors"

// ErrNotFound indicates that the underlying storage holds no record for the
// requested identifier.
var ErrNotFound = errors.New("todo not found")
