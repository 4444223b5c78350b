package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all modules. Handlers map these onto HTTP
// statuses in platform/httpx.
var (
	// ErrNotFound indicates a referenced entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates input rejected before any persistence call.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBusinessRule indicates a domain rule violation: terminal-status
	// mutation, non-zero-quantity deletion, insufficient stock, duplicate
	// stock record, invalid status transition.
	ErrBusinessRule = errors.New("business rule violation")
	// ErrIntegrity wraps persistence-layer constraint failures.
	ErrIntegrity = errors.New("integrity violation")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates a missing permission.
	ErrForbidden = errors.New("forbidden")
)

// NotFoundf builds an ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgumentf builds an ErrInvalidArgument with context.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// BusinessRulef builds an ErrBusinessRule with context.
func BusinessRulef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBusinessRule, fmt.Sprintf(format, args...))
}

// Integrityf wraps a persistence constraint failure with added context.
func Integrityf(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %v", ErrIntegrity, fmt.Sprintf(format, args...), cause)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// UserSafeMessage returns a message suitable for API clients. Unexpected
// errors collapse into a generic message so internals never leak.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrBusinessRule),
		errors.Is(err, ErrIntegrity),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrForbidden):
		return err.Error()
	default:
		return "internal error"
	}
}
