package domain

import "errors"

var (
	// ErrCancelled reports a user-requested abort. It is a normal
	// outcome, not a fault to log loudly.
	ErrCancelled = errors.New("task cancelled")

	// ErrPoolExhausted reports that no execution unit could be created
	// or found for a submitted task.
	ErrPoolExhausted = errors.New("execution pool exhausted")

	// ErrInvalidInput reports degenerate field dimensions or an empty
	// seed set where a result requires at least one.
	ErrInvalidInput = errors.New("invalid input")
)
