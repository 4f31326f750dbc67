package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidJob    = errors.New("invalid job")
	ErrDuplicateJob  = errors.New("duplicate job id")
	ErrJobProcessing = errors.New("job is processing")
	// ErrAuth marks credential failures (missing, invalid or expired API key).
	ErrAuth = errors.New("authentication failed")
	// ErrRequest marks any other failure reported by the generation service.
	ErrRequest = errors.New("generation request failed")
)
