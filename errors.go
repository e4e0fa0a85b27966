package dataops

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrConfig indicates missing or invalid configuration.
	ErrConfig = errors.New("configuration error")

	// ErrStreamNotReady indicates Message() was called before Next().
	ErrStreamNotReady = errors.New("stream not ready: call Next() first")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrSessionNotFound indicates the session does not exist or has expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotCreated indicates a query was submitted before a session
	// was created.
	ErrSessionNotCreated = errors.New("session not created")

	// ErrInvalidTransition indicates a pipeline phase change that skips or
	// reverses a step.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrNoPendingConsent indicates a consent decision for an invocation
	// that is not waiting for one.
	ErrNoPendingConsent = errors.New("no pending consent")
)
