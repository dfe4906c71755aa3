package domain

import (
	"errors"
	"fmt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ValidationError is a rejected input attached to the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PasswordTooLongMessage is the field error for passwords over MaxPasswordBytes.
var PasswordTooLongMessage = fmt.Sprintf("Ensure this value has at most %d bytes.", MaxPasswordBytes)

var (
	// ErrEmailRequired is returned when an account is created without an email.
	ErrEmailRequired = &ValidationError{Field: "email", Message: "email required"}
	// ErrPasswordRequired is returned when an administrator is created without a password.
	ErrPasswordRequired = &ValidationError{Field: "password", Message: "password required"}
	// ErrPasswordTooLong is returned for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = &ValidationError{Field: "password", Message: PasswordTooLongMessage}
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
