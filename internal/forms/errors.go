package forms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"account-console/internal/domain"
)

// Errors maps a field name to the messages that rejected it.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e[field], " ")))
	}
	return strings.Join(parts, "; ")
}

// ErrInvalidForm is returned when saving a form that did not validate.
var ErrInvalidForm = errors.New("form is not valid")

const (
	msgRequired         = "This field is required."
	msgPasswordMismatch = "The two password fields didn't match."
	msgEmailTaken       = "Account with this email already exists."
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkPasswordLength flags a password the hasher would refuse.
func checkPasswordLength(errs Errors, field, value string) {
	if len(value) > domain.MaxPasswordBytes {
		errs.Add(field, domain.PasswordTooLongMessage)
	}
}

// validateFields runs the struct tags of input and records failures in errs.
func validateFields(input any, errs Errors) {
	err := validate.Struct(input)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("__all__", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "datetime":
		return "Enter a valid date."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
