package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure. Handlers map it to an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindBadRequest
	KindPayloadTooLarge
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is returned by every service operation that fails. Message is safe to
// show to the caller; Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Unauthenticated(op string) *Error {
	return newError(KindUnauthenticated, op, "authentication required", nil)
}

func Forbidden(op, msg string) *Error { return newError(KindForbidden, op, msg, nil) }

func NotFound(op, msg string) *Error { return newError(KindNotFound, op, msg, nil) }

func Conflict(op, msg string, err error) *Error { return newError(KindConflict, op, msg, err) }

func BadRequest(op, msg string, err error) *Error { return newError(KindBadRequest, op, msg, err) }

func PayloadTooLarge(op, msg string) *Error { return newError(KindPayloadTooLarge, op, msg, nil) }

func RateLimited(op, msg string) *Error { return newError(KindRateLimited, op, msg, nil) }

// Internal hides err behind msg.
func Internal(op, msg string, err error) *Error { return newError(KindInternal, op, msg, err) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
