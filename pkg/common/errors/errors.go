package errors

import "errors"

// Common error types used across the gosched library

var (
	// ErrPreemptWithDelay indicates that a task was queued with both
	// preempt and a positive delay, which is contradictory
	ErrPreemptWithDelay = errors.New("preempt task cannot have a delay")

	// ErrPreemptPersistent indicates that a task was queued with both
	// preempt and persistent set
	ErrPreemptPersistent = errors.New("preempt task cannot be persistent")

	// ErrPersistentNotAllowed indicates that a persistent task was queued
	// on a tier that does not permit recurring work (the microtask tier)
	ErrPersistentNotAllowed = errors.New("persistent task not allowed on this queue")

	// ErrNotPending indicates that an operation required a pending task
	// but the task had already started, completed, or been canceled
	ErrNotPending = errors.New("task is not pending")

	// ErrCanceled indicates that a task was canceled before completing
	ErrCanceled = errors.New("task canceled")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// IsProgrammerError returns true if the error indicates misuse of the
// scheduling API rather than a runtime condition; these are never worth
// retrying
func IsProgrammerError(err error) bool {
	return errors.Is(err, ErrPreemptWithDelay) ||
		errors.Is(err, ErrPreemptPersistent) ||
		errors.Is(err, ErrPersistentNotAllowed) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrInvalidConfiguration)
}

// IsCanceled returns true if the error indicates task cancellation
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
