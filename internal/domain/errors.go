package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidJob         = errors.New("invalid job")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrLockNotAcquired    = errors.New("lock not acquired")
	ErrNotLockHolder      = errors.New("not lock holder")
	ErrIntegrityFault     = errors.New("integrity fault")
	ErrTimingRegression   = errors.New("non-monotonic escrow timing update")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)
