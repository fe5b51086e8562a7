package health

import "errors"

// Sentinel kinds for health evaluation errors.
var (
	ErrThresholdMismatch = errors.New("factor and threshold belong to different domains")
	ErrUnknownFactor     = errors.New("unknown factor")
	ErrUnknownTheme      = errors.New("unknown theme")
	ErrDuplicateFactor   = errors.New("duplicate factor")
)
