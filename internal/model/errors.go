package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every "does not exist" failure.  Use
// errors.Is(err, ErrNotFound) to detect any of the specific values below.
var ErrNotFound = errors.New("not found")

var (
	ErrConcertNotFound = fmt.Errorf("concert %w", ErrNotFound)
	ErrBuyerNotFound   = fmt.Errorf("buyer %w", ErrNotFound)
	ErrTicketNotFound  = fmt.Errorf("ticket %w", ErrNotFound)
)

// ErrInvalidRequest marks malformed input, such as a sale without a
// buyer email or a seat label that already exists for the concert.
var ErrInvalidRequest = errors.New("invalid request")

// ErrCapacityExceeded is matched by every *CapacityError.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// CapacityError reports a request that would push a concert's RESERVED
// plus SOLD tickets above its hall capacity.  The counts are the ones
// read inside the rejecting transaction.
type CapacityError struct {
	ConcertID uint64
	Requested int
	Capacity  int
	Occupied  int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cannot take %d tickets for concert %d: hall capacity %d, already booked/sold %d, available %d",
		e.Requested, e.ConcertID, e.Capacity, e.Occupied, e.Available)
}

// Is makes errors.Is(err, ErrCapacityExceeded) true for capacity errors.
func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

// Invalidf returns an ErrInvalidRequest carrying a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
