package canvas

import "fmt"

// Code classifies every failure on the Canvas side of the pipeline.
type Code int

const (
	// CodeConfig means the base URL or token is missing.
	CodeConfig Code = iota + 1
	CodeUnauthorized
	CodeUnreachable
	CodeUpstreamError
	// CodeRejected is a 400/422 for a single calendar event.
	CodeRejected
	// CodeInvalidResponse is a 2xx whose body could not be decoded.
	CodeInvalidResponse
)

// Codes lists every Code. Mappings over Code are tested against this list.
func Codes() []Code {
	return []Code{
		CodeConfig,
		CodeUnauthorized,
		CodeUnreachable,
		CodeUpstreamError,
		CodeRejected,
		CodeInvalidResponse,
	}
}

func (c Code) String() string {
	switch c {
	case CodeConfig:
		return "config"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeUnreachable:
		return "unreachable"
	case CodeUpstreamError:
		return "upstream_error"
	case CodeRejected:
		return "rejected"
	case CodeInvalidResponse:
		return "invalid_response"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Fatal reports whether a failure with this code invalidates the rest of a
// publish batch.
func (c Code) Fatal() bool {
	switch c {
	case CodeConfig, CodeUnauthorized, CodeUnreachable, CodeUpstreamError:
		return true
	default:
		return false
	}
}

// Error is the only error type returned by Client.
type Error struct {
	Code    Code
	Message string
	// HTTPStatus is the status Canvas answered with, zero when no response
	// was received.
	HTTPStatus int
	// Detail is a truncated excerpt of the response body, for diagnostics.
	Detail string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("canvas %s (HTTP %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("canvas %s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
