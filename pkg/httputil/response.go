package httputil

import (
	"net/http"

	"github.com/medibook/booking-api/pkg/errors"
)

// HTTPStatus maps an application error code to an HTTP status.
func HTTPStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest, errors.ErrValidation:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConflict:
		return http.StatusConflict
	case errors.ErrGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
