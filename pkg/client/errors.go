package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every non-successful outcome of a protocol call.
type ErrorKind int

const (
	// KindServiceUnreachable signals a transport level failure (connection refused, DNS, ...).
	KindServiceUnreachable ErrorKind = iota + 1
	// KindBackendUnavailable signals that the service is up, but its PostgreSQL backend is not.
	KindBackendUnavailable
	KindTemplateNotFound
	KindTemplateDiscarded
	// KindUnexpectedProtocolState signals a response the client does not know how to handle,
	// i.e. a client/server protocol mismatch. It is never retried.
	KindUnexpectedProtocolState
)

var (
	ErrServiceUnreachable      = errors.New("integresql is not reachable")
	ErrBackendUnavailable      = errors.New("integresql can't connect to PostgreSQL")
	ErrTemplateNotFound        = errors.New("template not found")
	ErrTemplateDiscarded       = errors.New("template was discarded")
	ErrUnexpectedProtocolState = errors.New("unexpected integresql response")
	errUnknownKind             = errors.New("unknown error kind")
)

func (k ErrorKind) String() string {
	switch k {
	case KindServiceUnreachable:
		return "ServiceUnreachable"
	case KindBackendUnavailable:
		return "BackendUnavailable"
	case KindTemplateNotFound:
		return "TemplateNotFound"
	case KindTemplateDiscarded:
		return "TemplateDiscarded"
	case KindUnexpectedProtocolState:
		return "UnexpectedProtocolState"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindServiceUnreachable:
		return ErrServiceUnreachable
	case KindBackendUnavailable:
		return ErrBackendUnavailable
	case KindTemplateNotFound:
		return ErrTemplateNotFound
	case KindTemplateDiscarded:
		return ErrTemplateDiscarded
	case KindUnexpectedProtocolState:
		return ErrUnexpectedProtocolState
	default:
		return errUnknownKind
	}
}

// maxErrorBodyLen caps the response body quoted in error messages.
const maxErrorBodyLen = 512

// Error is returned by all Client operations. Match it via errors.Is against the Err* sentinels
// or via errors.As to inspect the status code and the captured response body.
type Error struct {
	Kind       ErrorKind
	Op         string // e.g. "finalize template"
	Hash       string
	BaseURL    string
	StatusCode int    // 0 for transport failures
	Body       string // raw response body, if any
	Err        error  // underlying transport or decoding error, if any
}

func (e *Error) Error() string {
	var msg string

	switch e.Kind {
	case KindServiceUnreachable:
		msg = fmt.Sprintf("integresql not available, make sure integresql is running at %q", e.BaseURL)
	case KindBackendUnavailable:
		msg = fmt.Sprintf("integresql at %q can't connect to PostgreSQL, examine the integresql logs", e.BaseURL)
	case KindTemplateNotFound:
		msg = fmt.Sprintf("template with hash %q wasn't found, make sure the template was initialized", e.Hash)
	case KindTemplateDiscarded:
		msg = fmt.Sprintf("template with hash %q was discarded", e.Hash)
	default:
		msg = fmt.Sprintf("unexpected integresql response (HTTP status %d)", e.StatusCode)
	}

	msg = fmt.Sprintf("%s: %s", e.Op, msg)

	if len(e.Body) > 0 {
		body := e.Body
		if len(body) > maxErrorBodyLen {
			body = body[:maxErrorBodyLen] + "..."
		}
		msg = fmt.Sprintf("%s, response: %q", msg, body)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}

	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the ErrorKind of err, or 0 if err does not originate from a Client.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}
