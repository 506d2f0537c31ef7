package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNetwork          = errors.New("network failure")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrAuthentication   = errors.New("authentication failed")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrSafetyRejected   = errors.New("rejected by content safety")
	ErrRateLimited      = errors.New("rate limited")
	ErrJobNotFound      = errors.New("edit job not found")
	ErrBusy             = errors.New("processing already in progress")
	ErrTemporary        = errors.New("temporary failure")
	ErrUnexpected       = errors.New("unexpected failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// CancelledError signals that a cancel token fired. The pipeline routes it to
// the Cancelled terminal state instead of Error.
type CancelledError struct {
	Reason      string
	CancelledAt time.Time
}

func (e *CancelledError) Error() string {
	if e == nil || e.Reason == "" {
		return "operation cancelled"
	}
	return "operation cancelled: " + e.Reason
}

func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}
