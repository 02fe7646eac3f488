package auth

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced to callers. Persistence faults are deliberately
// NOT part of this list; they propagate unwrapped so the transport layer can
// treat them as 5xx-class conditions.
var (
	ErrConflict           = errors.New("auth: conflict")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLocked             = errors.New("auth: account locked")
	ErrTooManyAttempts    = errors.New("auth: too many attempts")
	ErrInactiveAccount    = errors.New("auth: account inactive")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrForbidden          = errors.New("auth: forbidden")

	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// Token verification failures. All of them map to ErrUnauthorized at the
// orchestrator boundary; the distinction exists for logging and tests.
var (
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenSignature = errors.New("auth: token signature mismatch")
	ErrTokenExpired   = errors.New("auth: token expired")
)

// ConflictError names the field whose uniqueness check failed during
// registration. errors.Is(err, ErrConflict) holds for it.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("auth: %s already in use", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
