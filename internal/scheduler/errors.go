package scheduler

import "errors"

var (
	// ErrUnknownMode is returned for an unknown concurrency mode name.
	ErrUnknownMode = errors.New("unknown concurrency mode")

	// ErrClosed is the cancellation cause of tasks still running when a
	// strategy's close timeout expires.
	ErrClosed = errors.New("scheduler closed")
)
