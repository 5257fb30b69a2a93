package message

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Type json.RawMessage `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireElapsed struct {
	Secs  *uint64 `json:"secs"`
	Nanos *uint64 `json:"nanos"`
	Human *string `json:"human"`
}

type wireStats struct {
	Elapsed           *wireElapsed `json:"elapsed"`
	Searches          *uint64      `json:"searches"`
	SearchesWithMatch *uint64      `json:"searches_with_match"`
	BytesSearched     *uint64      `json:"bytes_searched"`
	BytesPrinted      *uint64      `json:"bytes_printed"`
	MatchedLines      *uint64      `json:"matched_lines"`
	Matches           *uint64      `json:"matches"`
}

type wireSubmatch struct {
	Match *Data   `json:"match"`
	Start *uint64 `json:"start"`
	End   *uint64 `json:"end"`
}

type wireBegin struct {
	Path *Data `json:"path"`
}

type wireLine struct {
	Path           *Data           `json:"path"`
	Lines          *Data           `json:"lines"`
	LineNumber     *uint64         `json:"line_number"`
	AbsoluteOffset *uint64         `json:"absolute_offset"`
	Submatches     *[]wireSubmatch `json:"submatches"`
}

type wireEnd struct {
	Path         *Data      `json:"path"`
	BinaryOffset *uint64    `json:"binary_offset"`
	Stats        *wireStats `json:"stats"`
}

type wireSummary struct {
	ElapsedTotal *wireElapsed `json:"elapsed_total"`
	Stats        *wireStats   `json:"stats"`
}

// Decode turns one line of the engine's JSON output into a Message.
//
// A line whose "type" is absent or unknown fails with
// ErrUnrecognizedMessageKind. Invalid JSON, a missing "data" object or a
// payload lacking a required field fails with ErrMalformedMessage. Both are
// returned as *DecodeError carrying the raw line.
func Decode(line string) (Message, error) {
	msg, err := decode([]byte(line))
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}
	return msg, nil
}

func decode(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(env.Type) == 0 || string(env.Type) == "null" {
		return nil, fmt.Errorf("%w: missing type", ErrUnrecognizedMessageKind)
	}
	var name string
	if err := json.Unmarshal(env.Type, &name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedMessageKind, env.Type)
	}
	kind := Kind(name)
	switch kind {
	case KindBegin, KindMatch, KindContext, KindEnd, KindSummary:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedMessageKind, name)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, missing(kind, "data")
	}

	switch kind {
	case KindBegin:
		var w wireBegin
		if err := unmarshal(kind, env.Data, &w); err != nil {
			return nil, err
		}
		if w.Path == nil {
			return nil, missing(kind, "path")
		}
		return &Begin{Path: *w.Path}, nil

	case KindMatch:
		path, lines, lineNumber, offset, subs, err := decodeLine(kind, env.Data, true)
		if err != nil {
			return nil, err
		}
		return &Match{Path: path, Lines: lines, LineNumber: lineNumber, AbsoluteOffset: offset, Submatches: subs}, nil

	case KindContext:
		path, lines, lineNumber, offset, subs, err := decodeLine(kind, env.Data, false)
		if err != nil {
			return nil, err
		}
		return &Context{Path: path, Lines: lines, LineNumber: lineNumber, AbsoluteOffset: offset, Submatches: subs}, nil

	case KindEnd:
		var w wireEnd
		if err := unmarshal(kind, env.Data, &w); err != nil {
			return nil, err
		}
		if w.Path == nil {
			return nil, missing(kind, "path")
		}
		stats, err := convertStats(kind, w.Stats)
		if err != nil {
			return nil, err
		}
		return &End{Path: *w.Path, BinaryOffset: w.BinaryOffset, Stats: stats}, nil

	default:
		var w wireSummary
		if err := unmarshal(kind, env.Data, &w); err != nil {
			return nil, err
		}
		elapsed, err := convertElapsed(kind, "elapsed_total", w.ElapsedTotal)
		if err != nil {
			return nil, err
		}
		stats, err := convertStats(kind, w.Stats)
		if err != nil {
			return nil, err
		}
		return &Summary{ElapsedTotal: elapsed, Stats: stats}, nil
	}
}

// decodeLine handles the payload shared by match and context messages.
// Context lines may omit submatches.
func decodeLine(kind Kind, raw json.RawMessage, requireSubmatches bool) (Data, Data, *uint64, uint64, []Submatch, error) {
	var w wireLine
	if err := unmarshal(kind, raw, &w); err != nil {
		return Data{}, Data{}, nil, 0, nil, err
	}
	switch {
	case w.Path == nil:
		return Data{}, Data{}, nil, 0, nil, missing(kind, "path")
	case w.Lines == nil:
		return Data{}, Data{}, nil, 0, nil, missing(kind, "lines")
	case w.AbsoluteOffset == nil:
		return Data{}, Data{}, nil, 0, nil, missing(kind, "absolute_offset")
	case w.Submatches == nil && requireSubmatches:
		return Data{}, Data{}, nil, 0, nil, missing(kind, "submatches")
	}

	subs := []Submatch{}
	if w.Submatches != nil {
		for i, s := range *w.Submatches {
			switch {
			case s.Match == nil:
				return Data{}, Data{}, nil, 0, nil, missing(kind, fmt.Sprintf("submatches[%d].match", i))
			case s.Start == nil:
				return Data{}, Data{}, nil, 0, nil, missing(kind, fmt.Sprintf("submatches[%d].start", i))
			case s.End == nil:
				return Data{}, Data{}, nil, 0, nil, missing(kind, fmt.Sprintf("submatches[%d].end", i))
			}
			subs = append(subs, Submatch{Match: *s.Match, Start: *s.Start, End: *s.End})
		}
	}
	return *w.Path, *w.Lines, w.LineNumber, *w.AbsoluteOffset, subs, nil
}

func convertStats(kind Kind, w *wireStats) (Stats, error) {
	if w == nil {
		return Stats{}, missing(kind, "stats")
	}
	elapsed, err := convertElapsed(kind, "stats.elapsed", w.Elapsed)
	if err != nil {
		return Stats{}, err
	}
	counters := []struct {
		name string
		v    *uint64
	}{
		{"searches", w.Searches},
		{"searches_with_match", w.SearchesWithMatch},
		{"bytes_searched", w.BytesSearched},
		{"bytes_printed", w.BytesPrinted},
		{"matched_lines", w.MatchedLines},
		{"matches", w.Matches},
	}
	for _, c := range counters {
		if c.v == nil {
			return Stats{}, missing(kind, "stats."+c.name)
		}
	}
	return Stats{
		Elapsed:           elapsed,
		Searches:          *w.Searches,
		SearchesWithMatch: *w.SearchesWithMatch,
		BytesSearched:     *w.BytesSearched,
		BytesPrinted:      *w.BytesPrinted,
		MatchedLines:      *w.MatchedLines,
		Matches:           *w.Matches,
	}, nil
}

func convertElapsed(kind Kind, field string, w *wireElapsed) (Elapsed, error) {
	switch {
	case w == nil:
		return Elapsed{}, missing(kind, field)
	case w.Secs == nil:
		return Elapsed{}, missing(kind, field+".secs")
	case w.Nanos == nil:
		return Elapsed{}, missing(kind, field+".nanos")
	case w.Human == nil:
		return Elapsed{}, missing(kind, field+".human")
	}
	return Elapsed{Secs: *w.Secs, Nanos: *w.Nanos, Human: *w.Human}, nil
}

func unmarshal(kind Kind, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, kind, err)
	}
	return nil
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%w: %s: missing %s", ErrMalformedMessage, kind, field)
}

// Marshal encodes m in the engine's line format, without a trailing newline.
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	return json.Marshal(struct {
		Type Kind    `json:"type"`
		Data Message `json:"data"`
	}{Type: m.Kind(), Data: m})
}
