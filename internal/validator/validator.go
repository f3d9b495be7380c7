// Package validator provides a custom Validator type for accumulating
// field-level validation errors and returning them as a map.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// BookNumberRX matches the characters allowed in a book number: letters,
// digits and the separators / - _ .
var BookNumberRX = regexp.MustCompile(`^[A-Za-z0-9/\-_.]+$`)

// Validator holds a map of field names to their validation error messages.
// A Validator with an empty Errors map is considered valid.
type Validator struct {
	Errors map[string]string
	order  []string
}

// New creates and returns a fresh, empty Validator.
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map contains no entries.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records key as failing with the given message.
// If key already has an error it is not overwritten, so the first
// failure for a field is always the one that is reported.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
		v.order = append(v.order, key)
	}
}

// Check adds an error for key with message only when ok is false.
// Use this as a single-line guard:
//
//	v.Check(len(title) > 0, "title", "must be provided")
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// First returns the key and message of the first recorded failure.
func (v *Validator) First() (string, string) {
	if len(v.order) == 0 {
		return "", ""
	}
	key := v.order[0]
	return key, v.Errors[key]
}

// In returns true if value is present in the list slice.
func In(value string, list ...string) bool {
	for _, item := range list {
		if value == item {
			return true
		}
	}
	return false
}

// Matches returns true if value matches the provided compiled regexp.
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

var structValidator = playground.New(playground.WithRequiredStructEnabled())

func init() {
	// Report fields by their JSON names so messages match request bodies.
	structValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct runs the `validate` struct tags of dst and records each failing
// field. Non-validation errors (e.g. a nil pointer) are recorded under "body".
func (v *Validator) Struct(dst any) {
	err := structValidator.Struct(dst)
	if err == nil {
		return
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.AddError("body", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		v.AddError(fe.Field(), tagMessage(fe))
	}
}

func tagMessage(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "dive":
		return fe.Field() + " contains an invalid value"
	}
	return fe.Field() + " is invalid"
}
