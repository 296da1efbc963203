package pool

import "errors"

var (
	// ErrGraphInPool is returned when a block graph with the same identifier
	// is already tracked.
	ErrGraphInPool = errors.New("block graph already exists in pool")
	ErrPoolFull    = errors.New("block graph pool is full")
)
