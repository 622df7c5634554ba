// Package errors provides structured error types for the WBS engine.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes.
const (
	CodeValidation        Code = "VALIDATION_FAILED"
	CodeTaskNotFound      Code = "TASK_NOT_FOUND"
	CodeStore             Code = "STORE_FAILED"
	CodeIntegrityOrphan   Code = "INTEGRITY_ORPHAN"
	CodeIntegrityCycle    Code = "INTEGRITY_CYCLE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConfigInvalid     Code = "CONFIG_INVALID"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryUpstream
)

var codeCategories = map[Code]Category{
	CodeValidation:        CategoryBadRequest,
	CodeTaskNotFound:      CategoryNotFound,
	CodeStore:             CategoryUpstream,
	CodeIntegrityOrphan:   CategoryInternal,
	CodeIntegrityCycle:    CategoryInternal,
	CodeInvalidTransition: CategoryConflict,
	CodeConfigInvalid:     CategoryBadRequest,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryUpstream:
		return 502
	default:
		return 500
	}
}

// WBSError is the structured error type returned by the engine and its stores.
type WBSError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *WBSError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *WBSError) Unwrap() error {
	return e.Cause
}

// Category returns the error category for HTTP status mapping.
func (e *WBSError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *WBSError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *WBSError) MarshalJSON() ([]byte, error) {
	type alias WBSError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a WBSError with the same code.
func (e *WBSError) Is(target error) bool {
	t, ok := target.(*WBSError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// --- Constructors ---

// Validation returns a ValidationError for a blank or malformed field.
func Validation(format string, args ...any) *WBSError {
	return &WBSError{
		Code: CodeValidation,
		What: fmt.Sprintf(format, args...),
	}
}

// NotFound returns a NotFoundError for an unknown task id.
func NotFound(id string) *WBSError {
	return &WBSError{
		Code: CodeTaskNotFound,
		What: fmt.Sprintf("task %s not found", id),
	}
}

// Store wraps an adapter or transport failure. Errors that already carry a
// code (not found, validation from the store) are returned as is.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *WBSError
	if errors.As(err, &we) {
		return err
	}
	return &WBSError{
		Code:  CodeStore,
		What:  op,
		Cause: err,
	}
}

// InvalidTransition returns an error for a status change the active policy forbids.
func InvalidTransition(from, to string) *WBSError {
	return &WBSError{
		Code: CodeInvalidTransition,
		What: fmt.Sprintf("status change %s -> %s not allowed", from, to),
	}
}

// ConfigInvalid returns an error for a bad configuration value.
func ConfigInvalid(key, why string) *WBSError {
	return &WBSError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid config %s", key),
		Why:  why,
	}
}

// --- Predicates ---

// HasCode reports whether err is, or wraps, a WBSError with the given code.
func HasCode(err error, code Code) bool {
	var we *WBSError
	if !errors.As(err, &we) {
		return false
	}
	return we.Code == code
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return HasCode(err, CodeValidation) }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool { return HasCode(err, CodeTaskNotFound) }

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool { return HasCode(err, CodeStore) }

// HTTPStatus returns the status for any error; unknown errors map to 500.
func HTTPStatus(err error) int {
	var we *WBSError
	if errors.As(err, &we) {
		return we.HTTPStatus()
	}
	return 500
}

// AsWBSError returns the WBSError in err's chain, or nil.
func AsWBSError(err error) *WBSError {
	var we *WBSError
	if errors.As(err, &we) {
		return we
	}
	return nil
}
