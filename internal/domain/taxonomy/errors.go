package taxonomy

import "errors"

// Sentinel kinds for taxonomy errors.
var (
	ErrUnrecognizedEvent = errors.New("unrecognized event")
)
