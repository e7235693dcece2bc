package domain

import "errors"

var (
	// ErrCacheMiss marks any failure to obtain a usable registry from the cache
	// store. It is recoverable: the caller retrains.
	ErrCacheMiss = errors.New("cache miss")

	// ErrBlobNotFound is returned by cache stores when no blob has been written yet.
	ErrBlobNotFound = errors.New("cache blob not found")

	// ErrSaveFailure marks a failed attempt to persist the registry. The in-memory
	// registry stays valid.
	ErrSaveFailure = errors.New("save registry")

	// ErrEmptyPartition marks a key with no observations. Such keys are skipped.
	ErrEmptyPartition = errors.New("empty partition")

	// ErrNoModels is returned when a training pass produces no model at all.
	ErrNoModels = errors.New("no models trained")

	// ErrUnknownCategory is returned for a category absent from the registry.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownKey is returned when the category exists but the month was never trained.
	ErrUnknownKey = errors.New("unknown category/month key")

	// ErrInvalidMonth is returned for a label outside JAN..DEC.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidYear is returned for a year outside the four-digit range.
	ErrInvalidYear = errors.New("invalid year")
)
