package entity

import "errors"

var (
	// Validation errors, rejected before a job enters the queue
	ErrInvalidSpec   = errors.New("invalid anvil spec")
	ErrInvalidImage  = errors.New("invalid image data")
	ErrImageTooLarge = errors.New("image exceeds maximum supported dimensions")

	// Scheduler errors
	ErrQueueOverflow   = errors.New("job queue is full")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotQueued    = errors.New("job is no longer queued")
	ErrSchedulerClosed = errors.New("scheduler is shut down")

	// Processing errors
	ErrStepTimeout     = errors.New("processing step timed out")
	ErrSessionNotFound = errors.New("session not found")
)
