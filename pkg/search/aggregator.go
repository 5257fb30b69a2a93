package search

import (
	"bytes"
	"context"
	"iter"
	"strings"

	"github.com/computerscienceiscool/rgrun/pkg/executor"
	"github.com/computerscienceiscool/rgrun/pkg/message"
)

// SearchResult is the complete set of messages reported for one file.
// It is not modified after it has been handed out.
type SearchResult struct {
	Path    string
	Begin   *message.Begin
	Matches []*message.Match
	Context []*message.Context
	End     *message.End
}

// ResultMsg is one element of a non-blocking result stream.
type ResultMsg struct {
	Result *SearchResult
	Err    error
}

type state int

const (
	stateIdle state = iota
	stateInFile
	stateDone
	stateFailed
)

// Aggregator groups decoded messages into per-file results. It is not safe
// for concurrent use; each invocation owns one.
type Aggregator struct {
	state   state
	line    int
	current *SearchResult
	summary *message.Summary
	err     error
}

// NewAggregator returns an aggregator waiting for the first Begin.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Feed consumes one raw output line. It returns a result when the line
// closes a file, and nil otherwise. After an error every further call
// returns the same error.
func (a *Aggregator) Feed(line string) (*SearchResult, error) {
	if a.state == stateFailed {
		return nil, a.err
	}
	a.line++
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	msg, err := message.Decode(line)
	if err != nil {
		return nil, a.fail(err)
	}

	if a.state == stateDone {
		return nil, a.sequence(msg, "message after summary")
	}

	switch m := msg.(type) {
	case *message.Begin:
		if a.state == stateInFile {
			return nil, a.sequence(msg, "begin while "+a.current.Path+" is still open")
		}
		a.current = &SearchResult{Path: m.Path.String(), Begin: m}
		a.state = stateInFile

	case *message.Match:
		if a.state != stateInFile {
			return nil, a.sequence(msg, "match outside of a file")
		}
		a.current.Matches = append(a.current.Matches, m)

	case *message.Context:
		if a.state != stateInFile {
			return nil, a.sequence(msg, "context outside of a file")
		}
		a.current.Context = append(a.current.Context, m)

	case *message.End:
		if a.state != stateInFile {
			return nil, a.sequence(msg, "end without begin")
		}
		if !bytes.Equal(m.Path.Raw(), a.current.Begin.Path.Raw()) {
			return nil, a.sequence(msg, "end does not match open file "+a.current.Path)
		}
		res := a.current
		res.End = m
		a.current = nil
		a.state = stateIdle
		return res, nil

	case *message.Summary:
		if a.state == stateInFile {
			return nil, a.sequence(msg, "summary while "+a.current.Path+" is still open")
		}
		a.summary = m
		a.state = stateDone
	}
	return nil, nil
}

// Finish reports whether the stream ended in a consistent state. It must be
// called once the line source is exhausted.
func (a *Aggregator) Finish() error {
	switch a.state {
	case stateFailed:
		return a.err
	case stateInFile:
		return a.fail(&SequenceError{
			Err:    ErrUnterminatedStream,
			Path:   a.current.Path,
			Reason: "output ended before end of file",
		})
	}
	return nil
}

// Summary returns the trailing summary message, or nil if none was seen.
func (a *Aggregator) Summary() *message.Summary {
	return a.summary
}

func (a *Aggregator) sequence(msg message.Message, reason string) error {
	e := &SequenceError{Err: ErrProtocolSequence, Line: a.line, Kind: msg.Kind(), Reason: reason}
	switch m := msg.(type) {
	case *message.Begin:
		e.Path = m.Path.String()
	case *message.Match:
		e.Path = m.Path.String()
	case *message.Context:
		e.Path = m.Path.String()
	case *message.End:
		e.Path = m.Path.String()
	}
	return a.fail(e)
}

func (a *Aggregator) fail(err error) error {
	a.state = stateFailed
	a.current = nil
	a.err = err
	return err
}

// Aggregate turns a sequence of raw output lines into a sequence of
// per-file results. Source errors and aggregation errors are yielded once,
// after every result completed before them, and end the sequence. Stopping
// early stops the source. Each iteration uses a fresh aggregator.
func Aggregate(lines iter.Seq2[string, error]) iter.Seq2[*SearchResult, error] {
	return func(yield func(*SearchResult, error) bool) {
		aggregate(NewAggregator(), lines, yield)
	}
}

// AggregateWith is Aggregate using agg, so the caller can read the summary
// afterwards. agg must be fresh and the sequence can only be consumed once.
func AggregateWith(agg *Aggregator, lines iter.Seq2[string, error]) iter.Seq2[*SearchResult, error] {
	return func(yield func(*SearchResult, error) bool) {
		aggregate(agg, lines, yield)
	}
}

func aggregate(agg *Aggregator, lines iter.Seq2[string, error], yield func(*SearchResult, error) bool) {
	for line, err := range lines {
		if err != nil {
			yield(nil, err)
			return
		}
		res, err := agg.Feed(line)
		if err != nil {
			yield(nil, err)
			return
		}
		if res != nil && !yield(res, nil) {
			return
		}
	}
	if err := agg.Finish(); err != nil {
		yield(nil, err)
	}
}

// AggregateStream is the non-blocking counterpart of Aggregate. stop is
// called when aggregation ends, early or not, so the producer of in can
// release its process; it may be nil. Cancelling ctx abandons the stream
// without a terminal error.
func AggregateStream(ctx context.Context, in <-chan executor.Line, stop context.CancelFunc) <-chan ResultMsg {
	return AggregateStreamWith(ctx, NewAggregator(), in, stop)
}

// AggregateStreamWith is AggregateStream using agg. Read agg only after the
// returned channel is closed.
func AggregateStreamWith(ctx context.Context, agg *Aggregator, in <-chan executor.Line, stop context.CancelFunc) <-chan ResultMsg {
	out := make(chan ResultMsg)
	go func() {
		defer close(out)
		if stop != nil {
			defer stop()
		}

		send := func(m ResultMsg) bool {
			select {
			case out <- m:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for l := range in {
			if l.Err != nil {
				send(ResultMsg{Err: l.Err})
				return
			}
			res, err := agg.Feed(l.Text)
			if err != nil {
				send(ResultMsg{Err: err})
				return
			}
			if res != nil && !send(ResultMsg{Result: res}) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := agg.Finish(); err != nil {
			send(ResultMsg{Err: err})
		}
	}()
	return out
}
