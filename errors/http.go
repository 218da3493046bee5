package errors

import "net/http"

// ToHTTPStatus maps domain errors to HTTP status codes.
// Anything unknown is an internal error.
func ToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrValidation), Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case Is(err, ErrInvalidCredentials), Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case Is(err, ErrInvalidAttachment):
		return http.StatusUnsupportedMediaType
	case Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
