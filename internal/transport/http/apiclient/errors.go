package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies where an Error came from.
type Kind string

const (
	// KindTransport: the request never completed; Status is zero.
	KindTransport Kind = "transport"
	// KindAuthExpired marks a 401 that is being recovered by a refresh. It
	// is never returned to callers.
	KindAuthExpired Kind = "auth_expired"
	// KindAuthInvalid: a 401 that could not be recovered; stored tokens were purged.
	KindAuthInvalid Kind = "auth_invalid"
	// KindAPI: any other non-2xx response.
	KindAPI Kind = "api"
	// KindParse: a 2xx response declared JSON but did not contain it.
	KindParse Kind = "parse"
)

// ErrNoRefreshToken is returned by Refresh when the store holds no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Error is the single failure shape returned by the client. Error()
// returns Message unchanged so callers can show it as-is.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code, zero for transport failures.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HasStatus reports whether the error carries an HTTP status.
func (e *Error) HasStatus() bool {
	return e.Status != 0
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return 0
}

func genericStatusMessage(status int) string {
	return fmt.Sprintf("HTTP error! status: %d", status)
}

func transportError(method, path string, cause error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf("network error: %s %s: %v", method, path, unwrapURLError(cause)),
		Cause:   cause,
	}
}
