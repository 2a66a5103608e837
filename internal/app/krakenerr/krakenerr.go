// Package krakenerr provides the error-kind taxonomy used across kraken's
// components: a stable Kind plus a short code, wrapping the underlying
// cause.
package krakenerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purpose of mapping it to a transport
// status and a log severity; it is not a type hierarchy.
type Kind string

const (
	ClientInput       Kind = "client_input"
	Authorization     Kind = "authorization"
	Conflict          Kind = "conflict"
	NotFound          Kind = "not_found"
	UpstreamMalformed Kind = "upstream_malformed"
	Storage           Kind = "storage"
	Internal          Kind = "internal"
	Integration       Kind = "integration"
)

// Error is a Kind-tagged, code-carrying error with an optional cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a causeless Error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a Kind and code to an existing error.
func Wrap(kind Kind, code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Message: err.Error(), Cause: err}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Common stable codes referenced from more than one package.
const (
	CodeInvalidUUID     = "InvalidUuid"
	CodeMissingField    = "MissingField"
	CodeAlreadyExists   = "AlreadyExists"
	CodeNotMember       = "NotMember"
	CodeMalformedResult = "MalformedResult"
)
