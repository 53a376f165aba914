// Package apperr defines the error kinds returned by the services and how
// they map onto HTTP responses
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
	KindPrediction
	KindBusy
	KindStorage
)

// Error is the only error type the handlers know how to render. Message is
// shown to the client, Err is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Code overrides the default status of Kind when non-zero
	Code int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ", " + e.Err.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithStatus returns a copy of e answering with status code instead of the
// one implied by its kind
func (e *Error) WithStatus(code int) *Error {
	c := *e
	c.Code = code
	return &c
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Prediction(msg string, err error) *Error {
	return &Error{Kind: KindPrediction, Message: msg, Err: err}
}

func Busy(msg string) *Error {
	return &Error{Kind: KindBusy, Message: msg}
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: "Internal server error", Err: err}
}

// KindOf reports the kind of err, KindInternal for anything that is not an
// *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Is reports whether err carries kind k
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Status maps err to the HTTP status code sent to the client.
// NotFound deliberately answers 400 so the reset flow does not reveal
// more than login does.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	if e.Code != 0 {
		return e.Code
	}

	switch e.Kind {
	case KindValidation, KindConflict, KindNotFound:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the client facing message of err. Unknown errors never leak
// their text.
func Detail(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Message == "" {
		return "Internal server error"
	}

	return e.Message
}
