package bookrec

import "errors"

var (
	// ErrInvalidK is returned when a query requests a non-positive number
	// of recommendations.
	ErrInvalidK = errors.New("bookrec: k must be positive")

	// ErrNotReady is returned when a query arrives before the engine has
	// loaded or built its matrix and index. This is a caller bug, not a
	// recoverable per-query condition.
	ErrNotReady = errors.New("bookrec: engine not initialized")

	// ErrRebuildInProgress is returned when a rebuild is requested while
	// another rebuild is still running. The second attempt is rejected
	// rather than racing the first for the cache artifacts.
	ErrRebuildInProgress = errors.New("bookrec: rebuild already in progress")

	// ErrNoDataset is returned when a rebuild is required but no dataset
	// files were configured.
	ErrNoDataset = errors.New("bookrec: no dataset configured")
)
