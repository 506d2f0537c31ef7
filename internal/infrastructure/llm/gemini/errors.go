package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"

	genai "google.golang.org/genai"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/infrastructure/resilience"
)

// Classify decides retry and breaker treatment for Gemini failures. Quota and
// auth errors are permanent and counted against the breaker; transient server
// and transport errors retry.
func Classify(err error) resilience.Outcome {
	if err == nil {
		return resilience.Outcome{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Outcome{Retryable: false, RecordFailure: false}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Outcome{Retryable: true, RecordFailure: true}
		case http.StatusTooManyRequests:
			return resilience.Outcome{Retryable: false, RecordFailure: true}
		default:
			return resilience.Outcome{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Outcome{Retryable: true, RecordFailure: true}
	}
	return resilience.Outcome{Retryable: false, RecordFailure: true}
}

// mapError folds a raw Gemini failure into the domain error taxonomy. Context
// errors pass through untouched so callers can route cancellation.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if domain.IsKind(err, domain.ErrSafetyRejected) ||
		domain.IsKind(err, domain.ErrInvalidInput) ||
		domain.IsKind(err, domain.ErrUnexpected) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrModelUnavailable, operation, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(domain.ErrAuthentication, operation, err)
		case http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrQuotaExceeded, operation, err)
		case http.StatusNotFound, http.StatusServiceUnavailable:
			return domain.WrapError(domain.ErrModelUnavailable, operation, err)
		case http.StatusBadRequest:
			return domain.WrapError(domain.ErrInvalidInput, operation, err)
		default:
			return domain.WrapError(domain.ErrUnexpected, operation, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrNetwork, operation, err)
	}
	return domain.WrapError(domain.ErrUnexpected, operation, err)
}
