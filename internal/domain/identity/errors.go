package identity

import "errors"

// Sentinel kinds for identity errors.
var (
	ErrEmptyField = errors.New("identity field is empty")
)
