// Package codec encodes metric counters so that no consumer ever observes a
// rounded or coerced value.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var nullToken = []byte("null")

// Count is a nullable, non-negative 64-bit counter. The zero value is null.
type Count struct {
	Value int64
	Valid bool
}

// Of returns a present count.
func Of(v int64) Count { return Count{Value: v, Valid: true} }

// Null returns an absent count.
func Null() Count { return Count{} }

// FromUint64 converts u, failing when it does not fit in a signed 64-bit value.
func FromUint64(u uint64) (Count, error) {
	if u > math.MaxInt64 {
		return Count{}, fmt.Errorf("%w: %d exceeds int64", ErrPrecisionLoss, u)
	}
	return Of(int64(u)), nil
}

// Add sums two counts. Null is the identity; null plus null stays null.
// Negative operands are refused.
func Add(a, b Count) (Count, error) {
	for _, c := range [...]Count{a, b} {
		if c.Valid && c.Value < 0 {
			return Count{}, fmt.Errorf("%w: %d", ErrNegative, c.Value)
		}
	}
	switch {
	case !a.Valid:
		return b, nil
	case !b.Valid:
		return a, nil
	}
	if a.Value > math.MaxInt64-b.Value {
		return Count{}, fmt.Errorf("%w: %d + %d overflows int64", ErrPrecisionLoss, a.Value, b.Value)
	}
	return Of(a.Value + b.Value), nil
}

// Int64 returns the value and whether it is present.
func (c Count) Int64() (int64, bool) { return c.Value, c.Valid }

// IsZero reports whether c is null. Present zero is not IsZero.
func (c Count) IsZero() bool { return !c.Valid }

func (c Count) String() string {
	if !c.Valid {
		return "null"
	}
	return strconv.FormatInt(c.Value, 10)
}

// MarshalJSON emits a bare integer token, or null when absent.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return nullToken, nil
	}
	if c.Value < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegative, c.Value)
	}
	return strconv.AppendInt(nil, c.Value, 10), nil
}

// UnmarshalJSON accepts null or an integer literal within int64. Anything
// that would need rounding or truncation is rejected.
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, nullToken) {
		*c = Count{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return fmt.Errorf("%w: counter encoded as string %s", ErrPrecisionLoss, b)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return fmt.Errorf("%w: %s out of int64 range", ErrPrecisionLoss, b)
		}
		return fmt.Errorf("%w: %s is not an integer", ErrPrecisionLoss, b)
	}
	if v < 0 {
		return fmt.Errorf("%w: %d", ErrNegative, v)
	}
	*c = Of(v)
	return nil
}
