package domain

import "errors"

var (
	// ErrAlreadyActive is returned when a start request hits an occupied scope.
	ErrAlreadyActive = errors.New("a session is already active in this channel")
	// ErrSessionNotFound is returned when no session exists at the scope.
	ErrSessionNotFound = errors.New("no active session in this channel")
	// ErrGenerationFailed indicates the question source failed or timed out.
	ErrGenerationFailed = errors.New("question generation failed")
	// ErrInvalidTransition is an internal bug guard; it forces an abort of the
	// offending session instead of corrupting state.
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrRecoveryTimeout marks restored sessions that were never resumed.
	ErrRecoveryTimeout = errors.New("session recovery timed out")
	// ErrNotRecovering is returned when a resume targets a session that is not
	// waiting on recovery.
	ErrNotRecovering = errors.New("session is not awaiting recovery")
)
