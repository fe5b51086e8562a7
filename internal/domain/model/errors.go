package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidAlarm     = errors.New("invalid alarm notification")
	ErrUnknownRecord    = errors.New("unknown record kind")
)
