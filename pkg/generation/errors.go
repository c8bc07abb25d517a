package generation

import "errors"

var (
	// ErrTimeout is returned when a generation exceeds its wall-clock
	// budget, including time spent waiting for a concurrency permit.
	ErrTimeout = errors.New("generation timed out")

	// ErrResourceExhausted is returned when the accelerator runs out of
	// memory during inference. Safe for clients to retry.
	ErrResourceExhausted = errors.New("accelerator memory exhausted")

	// ErrAccelerator is returned by backends when accelerator placement
	// fails at load time. The engine falls back to CPU on it.
	ErrAccelerator = errors.New("accelerator unavailable")
)
