package codec

import "errors"

// Sentinel kinds for codec errors. Both are serialization failures and are
// fatal for the record that carries the counter.
var (
	ErrPrecisionLoss = errors.New("counter cannot be represented without precision loss")
	ErrNegative      = errors.New("counter must not be negative")
)
