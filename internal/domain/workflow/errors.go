package workflow

import "errors"

var (
	// ErrInvalidTransition means the trigger is not configured for the current state
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrGuardFailed means every guard on the trigger rejected the progress
	ErrGuardFailed = errors.New("guard condition failed")
)
