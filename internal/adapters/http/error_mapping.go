package httpadapter

import (
	"net/http"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrAuthentication):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrRateLimited), domain.IsKind(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrSafetyRejected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
