// Package schema validates untrusted decoded data against struct-tag schemas and
// reports the outcome as a value instead of an error-or-panic.
package schema

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

// Result is the outcome of a validation pass. OK is true only when Errors is empty.
type Result struct {
	OK     bool
	Errors []FieldError
}

// Err folds a failed Result into a single error, or nil when OK.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	if len(r.Errors) == 0 {
		return ErrInvalid
	}
	parts := make([]string, 0, len(r.Errors))
	for _, fe := range r.Errors {
		parts = append(parts, fe.Field+":"+fe.Rule)
	}
	return &Error{msg: "schema: " + strings.Join(parts, ", ")}
}

// ErrInvalid is matched by every error returned from [Result.Err].
var ErrInvalid = errors.New("schema validation failed")

// Error is returned by [Result.Err].
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Is(target error) bool { return target == ErrInvalid }

// Validator checks values against `validate:"..."` tags. Field names in results
// use the json tag name when one is present.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator. A Validator caches struct metadata and is safe for
// concurrent use; build one and share it.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates a struct or struct pointer. It never panics on bad input.
func (s *Validator) Struct(value any) Result {
	if value == nil {
		return Result{Errors: []FieldError{{Rule: "required"}}}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Result{Errors: []FieldError{{Rule: "required"}}}
	}
	return fromError(s.v.Struct(value))
}

// Var validates a single value against a tag expression such as "required,email".
func (s *Validator) Var(value any, tag string) Result {
	return fromError(s.v.Var(value, tag))
}

func fromError(err error) Result {
	if err == nil {
		return Result{OK: true}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{
				Field: fe.Field(),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
		return Result{Errors: out}
	}

	// InvalidValidationError: the value was not something the validator can walk.
	return Result{Errors: []FieldError{{Rule: "type"}}}
}

var std = New()

// Validate runs [Validator.Struct] on the package default Validator.
func Validate(value any) Result {
	return std.Struct(value)
}

// Check runs [Validator.Var] on the package default Validator.
func Check(value any, tag string) Result {
	return std.Var(value, tag)
}
