package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a domain error for transport mapping.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuthorization
	KindNotFound
	KindConflict
	KindState
)

// Error is the domain error surfaced to API callers. Validation errors carry
// per-field detail in Fields.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (%d invalid fields)", e.Message, len(e.Fields))
	}
	return e.Message
}

// HTTPStatus maps the error kind to an HTTP status code. State errors map to
// 400: the action is syntactically fine but invalid for the current status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// AsError extracts a *Error from err, if it wraps one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ValidationError reports malformed input with per-field messages.
func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid payload", Fields: fields}
}

// AuthorizationError reports a caller lacking ownership or role.
func AuthorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFoundError reports an unknown entity id.
func NotFoundError(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// ConflictError reports a write refused because of a concurrent or duplicate action.
func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// StateError reports an action invalid for the current workflow status.
func StateError(message string) *Error {
	return &Error{Kind: KindState, Message: message}
}
