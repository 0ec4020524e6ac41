package timeedit

import "fmt"

// Kind classifies every failure on the TimeEdit side of the pipeline.
type Kind int

const (
	KindInvalidURL Kind = iota + 1
	KindUnreachable
	KindUpstreamError
	KindParseError
)

// Kinds lists every Kind. Mappings over Kind are tested against this list.
func Kinds() []Kind {
	return []Kind{KindInvalidURL, KindUnreachable, KindUpstreamError, KindParseError}
}

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindUnreachable:
		return "unreachable"
	case KindUpstreamError:
		return "upstream_error"
	case KindParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the only error type returned by this package.
type Error struct {
	Kind    Kind
	Message string
	// HTTPStatus is the status observed from TimeEdit; only set for
	// KindUpstreamError.
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("timeedit %s (HTTP %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("timeedit %s: %s", e.Kind, e.Message)
}

func invalidURL(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidURL, Message: fmt.Sprintf(format, args...)}
}

func unreachable(format string, args ...any) *Error {
	return &Error{Kind: KindUnreachable, Message: fmt.Sprintf(format, args...)}
}

func parseError(format string, args ...any) *Error {
	return &Error{Kind: KindParseError, Message: fmt.Sprintf(format, args...)}
}
