// Package errors provides domain-specific error types for tunneld.
//
// These types carry structured context (which check rejected a
// notification, which service failed to resolve) so the feature layer
// can log precise diagnostics while absorbing every terminal condition
// locally — no error from this core crosses back into the notification
// transport.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrDuplicate       = errors.New("duplicate tunnel notification")
	ErrFeatureStopped  = errors.New("feature is stopped")
	ErrNotConnected    = errors.New("session not connected")
)

// ── Structured error types ───────────────────────────────────────────

// RejectionError reports a notification that failed validation.  The
// Check field names the pipeline stage that rejected it.
type RejectionError struct {
	Check   string // "client-mode", "services", "access-token", "region", "address", "port"
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("notification rejected (%s): %s", e.Check, e.Message)
}

// Reject builds a RejectionError for the named check.
func Reject(check, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Check: check, Message: fmt.Sprintf(format, args...)}
}

// ResolutionError reports a service name that could not be mapped to a
// destination.
type ResolutionError struct {
	Service string
	What    string // "address" or "port"
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no %s for service %q", e.What, e.Service)
}

func (e *ResolutionError) Unwrap() error { return ErrServiceNotFound }

// SessionError reports a failure of a tunnel session operation.
type SessionError struct {
	Op       string // "dial-proxy", "dial-destination", "stop"
	Endpoint string
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// ── Classification helpers ───────────────────────────────────────────

// IsRejection reports whether err is a validation rejection, which is
// logged and dropped rather than escalated.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// IsNotFound reports whether err stems from an unresolvable service.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }
