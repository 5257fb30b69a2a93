package message

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedMessage        = errors.New("MALFORMED_MESSAGE")
	ErrUnrecognizedMessageKind = errors.New("UNRECOGNIZED_MESSAGE_KIND")
)

// DecodeError wraps a failure to decode one output line.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode line %q: %v", truncate(e.Line, 200), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
