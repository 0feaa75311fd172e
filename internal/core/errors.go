package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks client-correctable input, reported before any
	// external call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrResolutionFailed is matched by every ResolutionFailedError.
	ErrResolutionFailed = errors.New("resolution failed")

	ErrChatNotFound = errors.New("chat not found")
	ErrChatClosed   = errors.New("chat is closed")
	ErrForbidden    = errors.New("chat belongs to another patient")
)

// UpstreamError reports a failed or empty response from an external service.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ResolutionFailedError is returned when no answer source produced text.
type ResolutionFailedError struct {
	Cause error
}

func (e *ResolutionFailedError) Error() string {
	return fmt.Sprintf("resolution failed: %v", e.Cause)
}

func (e *ResolutionFailedError) Unwrap() []error {
	return []error{ErrResolutionFailed, e.Cause}
}

func invalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}
