package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a RequestError.
type ErrorKind int

const (
	// KindHTTP is a non-2xx response, or a 2xx envelope with success=false.
	KindHTTP ErrorKind = iota

	// KindTimeout means the per-call deadline fired. It is never retried.
	KindTimeout

	// KindNetwork covers transport failures and unreadable responses.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// RequestError is any failed call that is not a session expiry. Message is
// the server's own text and is meant to be shown to the user verbatim.
type RequestError struct {
	Kind    ErrorKind
	Method  string
	Path    string
	Status  int
	Message string
	RawBody []byte
	Err     error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("%s %s: request timed out", e.Method, e.Path)
	case KindNetwork:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	default:
		return fmt.Sprintf("%s %s (%d): %s", e.Method, e.Path, e.Status, e.Message)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessage is the text to show for this failure.
func (e *RequestError) UserMessage() string {
	if e.Kind == KindTimeout {
		return "Request failed"
	}
	if e.Message == "" {
		return "Request failed"
	}
	return e.Message
}

// SessionExpiredError is returned when the access token could not be
// refreshed or the retry budget ran out. The credential has already been
// cleared and the session's end hooks have fired.
type SessionExpiredError struct {
	Cause error
}

func (e *SessionExpiredError) Error() string {
	if e.Cause == nil {
		return "session expired"
	}
	return fmt.Sprintf("session expired: %v", e.Cause)
}

func (e *SessionExpiredError) Unwrap() error { return e.Cause }

// ConflictError is a rejected version-stamped write: another writer got
// there first. It is resolved by refetching, never shown to the user.
type ConflictError struct {
	*RequestError
}

func (e *ConflictError) Error() string {
	return "version conflict: " + e.RequestError.Error()
}

func (e *ConflictError) Unwrap() error { return e.RequestError }

// IsTimeout reports whether err (or any error in its chain) is a timed-out
// call.
func IsTimeout(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == KindTimeout
}

// IsSessionExpired reports whether err (or any error in its chain) is a
// SessionExpiredError.
func IsSessionExpired(err error) bool {
	var expired *SessionExpiredError
	return errors.As(err, &expired)
}

// IsConflict reports whether err (or any error in its chain) is a
// ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// UserMessage returns the text a UI should display for err.
func UserMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.UserMessage()
	}
	if IsSessionExpired(err) {
		return "Your session has expired. Please log in again."
	}
	return "Request failed"
}
