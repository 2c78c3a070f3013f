package pool

import "errors"

var (
	// ErrNoAvailable is returned by SelectNext when no account is usable.
	ErrNoAvailable = errors.New("no available account: all accounts are cooling down, invalid or disabled")

	// ErrNotFound is returned for operations on an unknown account id.
	ErrNotFound = errors.New("account not found")
)
