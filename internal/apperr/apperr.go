package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation              Kind = "validation"
	KindExternalTool            Kind = "external_tool"
	KindNoOutput                Kind = "no_output"
	KindInvalidUpstreamResponse Kind = "invalid_upstream_response"
	KindUnhandled               Kind = "unhandled"
)

// Error is a classified failure that knows which HTTP status it maps to.
// Message is what the client sees; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil || e.Err.Error() == e.Message {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	if e.Kind == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func ExternalTool(msg string, err error) *Error {
	return &Error{Kind: KindExternalTool, Message: msg, Err: err}
}

func NoOutput(msg string) *Error {
	return &Error{Kind: KindNoOutput, Message: msg}
}

func InvalidUpstreamResponse(msg string) *Error {
	return &Error{Kind: KindInvalidUpstreamResponse, Message: msg}
}

func Unhandled(err error) *Error {
	return &Error{Kind: KindUnhandled, Message: err.Error(), Err: err}
}

// KindOf reports the kind of err, treating unclassified errors as unhandled.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnhandled
}

func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to return to a client for err.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
