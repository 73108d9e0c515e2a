// Package apperr defines the error taxonomy shared across the platform:
// not-found conditions, configuration errors, and failures of external
// capabilities (generation, embedding, vector index).
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound marks a missing tenant, workspace, teammate, assistant,
// document, or collection. Never retried; surfaced as 404 at the boundary.
var ErrNotFound = errors.New("not found")

// NotFoundf wraps ErrNotFound with a contextual message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// ConfigError reports invalid configuration (chunking parameters, routing
// strategy fields of the wrong type). Detected eagerly, before any external
// call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// CapabilityError reports a failed call to an external capability. Timeout
// distinguishes a deadline/cancellation style failure from a non-success
// response or malformed payload.
type CapabilityError struct {
	Capability string
	Timeout    bool
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s capability timed out: %v", e.Capability, e.Err)
	}
	return fmt.Sprintf("%s capability failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// Capability wraps err as a CapabilityError for the named capability,
// detecting timeouts from the error chain.
func Capability(capability string, err error) error {
	if err == nil {
		return nil
	}
	return &CapabilityError{
		Capability: capability,
		Timeout:    isTimeout(err),
		Err:        err,
	}
}

// IsCapability reports whether err is (or wraps) a CapabilityError.
func IsCapability(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
