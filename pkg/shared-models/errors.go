package datamodels

import (
	"errors"
)

// ErrorKind tags a failure with the stage that produced it.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInputNotFound
	KindInputMalformed
	KindValidationFailed
	KindAuthenticationFailed
	KindConnectionTimeout
	KindConnectionError
	KindUnexpected
)

var kindNames = map[ErrorKind]string{
	KindNone:                 "none",
	KindInputNotFound:        "input_not_found",
	KindInputMalformed:       "input_malformed",
	KindValidationFailed:     "validation_failed",
	KindAuthenticationFailed: "authentication_failed",
	KindConnectionTimeout:    "connection_timeout",
	KindConnectionError:      "connection_error",
	KindUnexpected:           "unexpected_error",
}

var kindPrefixes = map[ErrorKind]string{
	KindInputNotFound:        "Configuration file not found: ",
	KindInputMalformed:       "Invalid JSON in configuration file: ",
	KindValidationFailed:     "Invalid device configuration: ",
	KindAuthenticationFailed: "Authentication failed: ",
	KindConnectionTimeout:    "Connection timeout: ",
	KindConnectionError:      "Device connection error: ",
	KindUnexpected:           "Unexpected error: ",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Prefix is the message prefix used for results failing with this kind.
func (k ErrorKind) Prefix() string {
	return kindPrefixes[k]
}

// Error carries a kind tag across package boundaries. Callers branch on
// Kind, never on the concrete type of the wrapped error.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return e.Detail + ": " + e.Err.Error()
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first tagged error in err's chain, or
// fallback when the chain carries no tag.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Kind != KindNone {
		return tagged.Kind
	}
	return fallback
}
