// Package apperr is the closed set of failure kinds the API reports.
//
// Every error that crosses the HTTP boundary is an *Error. Its Kind decides
// the status code; its Message is what the caller sees. The wrapped cause is
// kept for logs and is never written to a response.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Unauthorized
	Invalid
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case Invalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Status is the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

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

func (e *Error) Status() int { return e.Kind.Status() }

// Body is the JSON response body for the error.
func (e *Error) Body() map[string]string {
	return map[string]string{"error": e.Message}
}

var (
	ErrNoteNotFound = New(NotFound, "Note not found")
	ErrNoToken      = New(Unauthorized, "Unauthorized")
	ErrMalformed    = New(Invalid, "Malformed JSON body")
)

func New(kind Kind, msg string, args ...any) *Error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an Internal error around cause. The message shown to callers is
// fixed.
func Wrap(cause error) *Error {
	return &Error{Kind: Internal, Message: "internal server error", Err: cause}
}

// From returns err as an *Error, wrapping anything else as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(err)
}

// KindOf reports the kind of err, Internal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// FromValidation converts validator failures into a single Invalid error.
// Returns nil if err is not a validation error.
func FromValidation(err error) *Error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}

	problems := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "max":
			problems = append(problems, field+" is too long, max: "+fe.Param())
		case "excludesall":
			problems = append(problems, field+" contains forbidden characters")
		default:
			problems = append(problems, field+" is invalid")
		}
	}
	return &Error{Kind: Invalid, Message: strings.Join(problems, "; "), Err: err}
}
