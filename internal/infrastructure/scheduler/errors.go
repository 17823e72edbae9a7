package scheduler

import "errors"

var (
	// ErrAlreadyRunning is returned when a worker is started twice
	ErrAlreadyRunning = errors.New("worker is already running")

	// ErrInvalidConfig is returned when worker configuration is invalid
	ErrInvalidConfig = errors.New("invalid worker configuration")
)
