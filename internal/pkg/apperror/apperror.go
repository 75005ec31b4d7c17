package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the delivery adapters.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindUpstream
	KindRunFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindRunFailed:
		return "run_failed"
	default:
		return "internal"
	}
}

// Error is the uniform failure value returned by services.
type Error struct {
	Kind    Kind
	Message string

	// RunStatus is set for KindRunFailed.
	RunStatus string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Upstream wraps a failed call to the assistant or vision provider.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// RunFailed reports a run that reached a terminal status other than completed.
func RunFailed(status string) *Error {
	return &Error{
		Kind:      KindRunFailed,
		Message:   fmt.Sprintf("Run failed with status: %s", status),
		RunStatus: status,
	}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf returns KindInternal for errors that are not *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// RunStatusOf returns the terminal run status carried by a RunFailed error.
func RunStatusOf(err error) (string, bool) {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind == KindRunFailed {
		return appErr.RunStatus, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream, KindRunFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text shown to clients. Internal details stay in the logs.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Kind == KindInternal || appErr.Message == "" {
			return "Internal server error"
		}
		return appErr.Message
	}
	return "Internal server error"
}
