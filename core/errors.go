package core

import "github.com/pkg/errors"

var (
	// ErrBackendUnavailable wraps every transport failure of a storage backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMalformedRecord is returned when a stored document cannot be coerced into its typed schema.
	ErrMalformedRecord = errors.New("malformed record")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// IsValidationError reports whether err (or its cause) is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// IsBackendUnavailable reports whether err was caused by an unreachable backend.
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// Unavailable marks err as a backend transport failure.
func Unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&unavailable{cause: err}, msg)
}

type unavailable struct {
	cause error
}

func (u *unavailable) Error() string { return ErrBackendUnavailable.Error() + ": " + u.cause.Error() }
func (u *unavailable) Is(target error) bool {
	return target == ErrBackendUnavailable
}
func (u *unavailable) Unwrap() error { return u.cause }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
