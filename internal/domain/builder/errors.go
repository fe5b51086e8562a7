package builder

import "errors"

// Sentinel kinds for builder errors.
var (
	// ErrValidation marks an event missing a field a record needs as its
	// discriminator. Only that event is dropped.
	ErrValidation = errors.New("validation failed")
)
