package search

import (
	"errors"
	"fmt"

	"github.com/computerscienceiscool/rgrun/pkg/message"
)

var (
	ErrProtocolSequence   = errors.New("PROTOCOL_SEQUENCE")
	ErrUnterminatedStream = errors.New("UNTERMINATED_STREAM")
)

// SequenceError reports a message stream that violates the
// begin/match/context/end/summary ordering. Err is ErrProtocolSequence or
// ErrUnterminatedStream.
type SequenceError struct {
	Err error
	// Line is the 1-based index of the offending output line, counting
	// skipped empty lines. Zero when the stream ended early.
	Line   int
	Kind   message.Kind
	Path   string
	Reason string
}

func (e *SequenceError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Err, e.Reason)
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d", e.Line)
		if e.Kind != "" {
			msg += ", " + string(e.Kind)
		}
		msg += ")"
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" in %q", e.Path)
	}
	return msg
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}
