package store

import "errors"

// ErrNotFound is returned when a lookup matches no live record.
var ErrNotFound = errors.New("store: record not found")
