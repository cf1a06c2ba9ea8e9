package change

import (
	"errors"
	"reflect"
	"strings"
)

// ValidationErrors collects problems found while validating changes.
// A nil *ValidationErrors holds no errors.
type ValidationErrors struct {
	errors []string
}

// NewValidationErrors creates an empty error collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// AddError records a message and returns the collection for chaining.
func (v *ValidationErrors) AddError(msg string) *ValidationErrors {
	v.errors = append(v.errors, msg)
	return v
}

// AddAll appends the errors of other.
func (v *ValidationErrors) AddAll(other *ValidationErrors) {
	if other == nil {
		return
	}
	v.errors = append(v.errors, other.errors...)
}

// CheckRequiredField records "<field> is required" when value is unset.
func (v *ValidationErrors) CheckRequiredField(field string, value any) {
	if isUnset(value) {
		v.AddError(field + " is required")
	}
}

// CheckDisallowedField records an error when value is set although db does not allow it.
func (v *ValidationErrors) CheckDisallowedField(field string, value any, dbName string) {
	if !isUnset(value) {
		v.AddError(field + " is not allowed on " + dbName)
	}
}

func (v *ValidationErrors) HasErrors() bool {
	return v != nil && len(v.errors) > 0
}

// Errors returns the recorded messages in insertion order.
func (v *ValidationErrors) Errors() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.errors...)
}

// Err returns the messages joined into one error, or nil when there are none.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return errors.New(strings.Join(v.errors, "; "))
}

// Warnings collects non-fatal remarks about a change.
type Warnings struct {
	messages []string
}

func NewWarnings() *Warnings {
	return &Warnings{}
}

func (w *Warnings) AddWarning(msg string) *Warnings {
	w.messages = append(w.messages, msg)
	return w
}

func (w *Warnings) HasWarnings() bool {
	return w != nil && len(w.messages) > 0
}

func (w *Warnings) Messages() []string {
	if w == nil {
		return nil
	}
	return append([]string(nil), w.messages...)
}

func isUnset(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Pointer:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
