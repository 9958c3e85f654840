package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the failure families the agent
// distinguishes. The kind decides both the HTTP mapping and whether the
// failure is surfaced to the model as a tool-error result or aborts the run.
type Kind string

const (
	// KindValidation covers malformed request input: bad history length,
	// unknown message role, unknown tool domain value. Never retried.
	KindValidation Kind = "validation"
	// KindConfiguration covers unsupported filter value types and missing
	// required external configuration. Fatal for the current call.
	KindConfiguration Kind = "configuration"
	// KindRetrieval covers search backend and embedding failures. The tool
	// layer reports these to the model as tool-error results.
	KindRetrieval Kind = "retrieval"
	// KindContractViolation covers generation output that breaks the declared
	// structured schema. Fatal for the run, no silent default.
	KindContractViolation Kind = "contract_violation"
	// KindInternal is the fallback for everything else.
	KindInternal Kind = "internal"
)

// SystemErrorMessage is a user-facing fallback when internal errors occur.
const SystemErrorMessage = "internal server error"

// Error wraps an underlying error with a kind, an HTTP status and a safe
// user-facing message.
type Error struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new Error with the provided information.
func New(err error, kind Kind, status int, message string) *Error {
	return &Error{
		Err:     err,
		Kind:    kind,
		Status:  status,
		Message: message,
	}
}

// Validation wraps a malformed-input error. Mapped to 400.
func Validation(err error, message string) *Error {
	return New(err, KindValidation, http.StatusBadRequest, message)
}

// Configuration wraps a misconfiguration error. Mapped to 500.
func Configuration(err error, message string) *Error {
	return New(err, KindConfiguration, http.StatusInternalServerError, message)
}

// Retrieval wraps a search backend or embedding failure. Mapped to 502.
func Retrieval(err error, message string) *Error {
	return New(err, KindRetrieval, http.StatusBadGateway, message)
}

// ContractViolation wraps generation output that breaks the declared
// structured schema. Mapped to 502.
func ContractViolation(err error, message string) *Error {
	return New(err, KindContractViolation, http.StatusBadGateway, message)
}

// KindOf extracts the Kind from an error chain, KindInternal when absent.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf extracts the HTTP status from an error chain, 500 when absent.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf extracts the safe message from an error chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return SystemErrorMessage
}
