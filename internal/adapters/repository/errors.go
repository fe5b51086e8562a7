package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("document not found")
	ErrClosed        = errors.New("store closed")
	ErrInvalidDoc    = errors.New("invalid document")
	ErrSerialization = errors.New("record serialization failed")
)
