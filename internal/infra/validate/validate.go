// Package validate wraps go-playground/validator and turns its errors into
// field -> message maps that can be shown next to form inputs.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// Validator validates request structs using their `validate` tags.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their JSON names.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{validate: validate}
}

// Struct validates s. Failures are returned as *FieldErrors wrapping domain.ErrValidation.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("validate: %w", err)
	}

	return newFieldErrors(errs)
}

// FieldErrors maps JSON field names to human readable messages.
type FieldErrors struct {
	Fields map[string]string `json:"errors"`
}

func newFieldErrors(errs validator.ValidationErrors) *FieldErrors {
	fields := make(map[string]string, len(errs))

	for _, err := range errs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			fields[field] = field + " is required"
		case "email":
			fields[field] = field + " must be a valid email address"
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		default:
			fields[field] = field + " is invalid"
		}
	}

	return &FieldErrors{Fields: fields}
}

// Error implements error. Messages are sorted by field for stable output.
func (e *FieldErrors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	messages := make([]string, 0, len(keys))
	for _, k := range keys {
		messages = append(messages, e.Fields[k])
	}

	return strings.Join(messages, "; ")
}

// Unwrap lets callers match with errors.Is(err, domain.ErrValidation).
func (e *FieldErrors) Unwrap() error {
	return domain.ErrValidation
}
