// Package ai provides common types for the vendor-facing capability ports.
// It defines the failure taxonomy shared by ASR, sentiment, reply and
// synthesis providers, and the single-retry policy applied at the
// orchestrator boundary.
package ai

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransient indicates a vendor failure that may succeed if retried.
	// Examples: network timeout, 5xx response, rate limiting.
	ErrTransient = errors.New("transient vendor failure")

	// ErrFatal indicates a failure that will not succeed if retried.
	// Examples: invalid credentials, unsupported format.
	ErrFatal = errors.New("fatal vendor failure")

	// ErrUnconfigured indicates the capability has no working provider.
	// The capability is disabled for the session; other capabilities
	// keep functioning.
	ErrUnconfigured = errors.New("capability not configured")
)

// IsTransient reports whether err should be treated as retryable. Context
// deadline expiry counts: a vendor call that exceeds its budget is handled
// identically to a vendor error, never as a hang.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// IsFatal reports whether err is permanent for this capability.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || errors.Is(err, ErrUnconfigured)
}

// VendorError wraps an underlying provider error with its classification.
type VendorError struct {
	Op         string // capability operation, e.g. "transcribe"
	Underlying error
	Transient  bool
}

func (e *VendorError) Error() string {
	if e.Underlying == nil {
		return e.Op + ": vendor failure"
	}
	return e.Op + ": " + e.Underlying.Error()
}

func (e *VendorError) Unwrap() error {
	if e.Transient {
		return ErrTransient
	}
	return ErrFatal
}

// Transient wraps err as a retryable vendor failure.
func Transient(op string, err error) error {
	return &VendorError{Op: op, Underlying: err, Transient: true}
}

// Fatal wraps err as a permanent vendor failure.
func Fatal(op string, err error) error {
	return &VendorError{Op: op, Underlying: err, Transient: false}
}

// CallBudget bounds a single vendor call. Every ASR/LLM/TTS call runs under
// one of these; exceeding it degrades to the capability's fallback instead
// of freezing the session pipeline.
type CallBudget struct {
	Timeout    time.Duration
	RetryDelay time.Duration
}

// DefaultBudget is the stock per-call budget.
var DefaultBudget = CallBudget{
	Timeout:    10 * time.Second,
	RetryDelay: 200 * time.Millisecond,
}

// Do runs fn under the budget's timeout, retrying exactly once if the first
// attempt fails with a transient error. Fatal errors and second failures
// are returned to the caller for fallback handling.
func (b CallBudget) Do(ctx context.Context, fn func(context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, b.Timeout)
		defer cancel()
		return fn(callCtx)
	}

	err := attempt()
	if err == nil || !IsTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	select {
	case <-time.After(b.RetryDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return attempt()
}
