// Package errors provides domain-specific error types for shellcatch.
//
// The sentinels separate the failure classes the session tasks care
// about: a transient input error is retried, everything else ends the
// task that observed it.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrBusClosed is returned by a wait on a control bus that has been
	// closed.  Waiters treat it as a request to terminate.
	ErrBusClosed = errors.New("control bus closed")

	// ErrNoSubscribers is returned by a send that reached nobody.
	ErrNoSubscribers = errors.New("control bus has no subscribers")

	// ErrInterrupted marks a read that was cut short (Ctrl-C, Ctrl-D on
	// an empty line, cancelled context) while the terminal is still
	// usable.
	ErrInterrupted = errors.New("read interrupted")

	// ErrReaderClosed marks a terminal whose input stream has ended.
	ErrReaderClosed = errors.New("terminal reader closed")

	// ErrSinkClosed is returned when the socket side of a session no
	// longer accepts input.
	ErrSinkClosed = errors.New("session sink closed")

	// ErrSlotClosed is returned by a publish on a closed last-value slot.
	ErrSlotClosed = errors.New("slot closed")

	ErrSessionNotFound = errors.New("session not found")
	ErrNotConnected    = errors.New("not connected")
	ErrAuthFailed      = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "dial", "listen", "accept", "write", "read"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "auth", "hostkey", "handshake"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // flag name without dashes
	Value   interface{} // nil if missing
	Message string
	Hint    string // optional
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsTransient reports whether a terminal read error leaves the reader
// usable, so the caller may simply read again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrReaderClosed) {
		return false
	}
	return errors.Is(err, ErrInterrupted)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Refused dials are worth retrying while a bind shell comes up.
		if opErr.Op == "dial" {
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // still useful for accept loops
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
