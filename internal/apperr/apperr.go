// Package apperr defines the typed error taxonomy shared by the coordinators.
// Every coordinator call either succeeds or returns an *Error whose Kind tells
// the routing layer how to respond and whose Reason lets clients render a
// precise message. Live-push failures are deliberately absent: delivery is
// best-effort and never reported to the caller.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// Validation covers malformed or missing input. Never retried.
	Validation Kind = iota
	// Authorization covers acting identities that are not permitted.
	Authorization
	// NotFound covers absent users, relationships, or messages.
	NotFound
	// Conflict covers duplicate relationship rows, already-friends, blocked.
	Conflict
	// Dependency covers storage or collaborator failures. The caller may retry
	// the whole operation; the core does not retry internally.
	Dependency
)

// Reason codes distinguishing conflict and validation cases for the client.
const (
	ReasonSelfRequest      = "self_request"
	ReasonAlreadyFriends   = "already_friends"
	ReasonDuplicateRequest = "duplicate_request"
	ReasonRequestFromOther = "request_from_other_side"
	ReasonBlockedByYou     = "blocked_by_you"
	ReasonBlockedByThem    = "blocked_by_them"
	ReasonEmptyMessage     = "empty_message"
	ReasonNotFriends       = "not_friends"
)

// Error is a tagged application error with a stable, user-readable message.
type Error struct {
	Kind    Kind
	Reason  string
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

// New builds an error with an explicit kind and reason code.
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Validationf tags input errors.
func Validationf(message string) *Error {
	return &Error{Kind: Validation, Message: message}
}

// Forbidden tags authorization errors.
func Forbidden(message string) *Error {
	return &Error{Kind: Authorization, Message: message}
}

// NotFoundf tags missing-entity errors.
func NotFoundf(message string) *Error {
	return &Error{Kind: NotFound, Message: message}
}

// Dependencyf wraps storage or collaborator failures. The underlying error is
// kept for logs but the message shown to callers stays generic.
func Dependencyf(message string, err error) *Error {
	return &Error{Kind: Dependency, Message: message, Err: err}
}

// KindOf extracts the kind of err, defaulting to Dependency for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Dependency
}

// ReasonOf extracts the reason code of err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// HTTPStatus maps an error to the status code the routing layer should send.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
