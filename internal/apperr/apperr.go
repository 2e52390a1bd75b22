package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrUnauthenticated   = errors.New("unauthenticated")    // 401
	ErrSessionExpired    = errors.New("session expired")    // 401
	ErrNeedsVerification = errors.New("needs verification") // 401
	ErrForbidden         = errors.New("forbidden")          // 403
	ErrNotFound          = errors.New("not found")          // 404
	ErrConflict          = errors.New("conflict")           // 409
)

// HTTPStatus maps a service error to the status code its handler should
// answer with. Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrNeedsVerification):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
