package auth

import "errors"

// ErrInvalidCredentials is returned by Login for an unknown username or a
// wrong password. Both cases share the message so callers cannot tell them apart.
var ErrInvalidCredentials = errors.New("Invalid username or password") //nolint:staticcheck // user-facing message

// ValidationError is a user-facing registration failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}
