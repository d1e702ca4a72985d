package grp

import "fmt"

// Kind classifies the error taxonomy from spec §7. SoftDecodeWarning is
// deliberately absent here: soft warnings never become errors, they are
// logged and decoding continues (see rle.go).
type Kind int

const (
	// KindInvalidInput covers bad CLI combinations, out-of-range
	// frame/row numbers, and pixel dimensions outside a variant's limits.
	KindInvalidInput Kind = iota
	// KindParseError covers malformed headers and out-of-range offsets.
	KindParseError
	// KindUnexpectedEOF covers truncated payloads.
	KindUnexpectedEOF
	// KindIO wraps filesystem errors.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindParseError:
		return "parse error"
	case KindUnexpectedEOF:
		return "unexpected eof"
	case KindIO:
		return "io error"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned across package boundaries so
// callers can discriminate via errors.As and Kind() without string
// matching.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// NewError builds an *Error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind wrapping an underlying
// cause, which Unwrap/errors.Is/errors.As can still reach.
func WrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}
