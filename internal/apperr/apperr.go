// Package apperr carries a machine-readable failure kind alongside service errors
// so handlers can pick a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

type Kind int

const (
	Internal Kind = iota
	Authentication
	Authorization
	Validation
	NotFound
	InvalidOperation
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Authentication:
		return "AUTHENTICATION"
	case Authorization:
		return "AUTHORIZATION"
	case Validation:
		return "VALIDATION"
	case NotFound:
		return "NOT_FOUND"
	case InvalidOperation:
		return "INVALID_OPERATION"
	case Conflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// Error is a service failure with a kind and a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// FromDB maps a repository error: record-not-found becomes NotFound with the
// given message, duplicate keys become Conflict, anything else is Internal.
func FromDB(err error, notFound string) *Error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(NotFound, err, "%s", notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(Conflict, err, "resource already exists")
	default:
		return Wrap(Internal, err, "database error")
	}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case Validation, InvalidOperation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text a client may see. Internal failures never leak
// their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "Internal server error"
}
