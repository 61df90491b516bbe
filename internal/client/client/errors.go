package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrRejected     = errors.New("request rejected")
	ErrBadResponse  = errors.New("unexpected response")
)

// StatusError describes a non-2xx response. It unwraps to the sentinel the
// status maps to (if any), so errors.Is works on the sentinels while
// errors.As exposes the code and the server's message.
type StatusError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("http status %d", e.StatusCode)
	if e.kind != nil {
		msg = e.kind.Error() + " (" + msg + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// Message returns the server-provided message carried by err, falling back
// to err's own text.
func Message(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
