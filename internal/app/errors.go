package service

import "errors"

// Sentinel error kinds of the service layer. Engine and repository kinds
// (rating.ErrInvalidMatch, repository.ErrNotFound, ...) pass through wrapped.
var (
	ErrBackpressure = errors.New("match queue is full")
	ErrNotStarted   = errors.New("service not started")
)
