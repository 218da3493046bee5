package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Delivery core
	ErrValidation        = fmt.Errorf("validation failed")
	ErrNotFound          = fmt.Errorf("not found")
	ErrConflict          = fmt.Errorf("status transition conflict")
	ErrStoreUnavailable  = fmt.Errorf("store unavailable")
	ErrNotificationMiss  = fmt.Errorf("notification delivery miss")
	ErrInvalidAttachment = fmt.Errorf("invalid attachment")

	// Accounts
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
)

// Is mirrors the standard library so callers need a single errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
