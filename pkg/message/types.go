package message

import "time"

// Kind is the discriminant carried in the "type" field of every line.
type Kind string

const (
	KindBegin   Kind = "begin"
	KindMatch   Kind = "match"
	KindContext Kind = "context"
	KindEnd     Kind = "end"
	KindSummary Kind = "summary"
)

// Message is one decoded line of engine output. The concrete type is one of
// *Begin, *Match, *Context, *End or *Summary.
type Message interface {
	Kind() Kind
	message()
}

// Begin marks the start of a file's results.
type Begin struct {
	Path Data `json:"path" yaml:"path"`
}

// Match is a matching line.
type Match struct {
	Path           Data       `json:"path" yaml:"path"`
	Lines          Data       `json:"lines" yaml:"lines"`
	LineNumber     *uint64    `json:"line_number" yaml:"line_number"`
	AbsoluteOffset uint64     `json:"absolute_offset" yaml:"absolute_offset"`
	Submatches     []Submatch `json:"submatches" yaml:"submatches"`
}

// Context is a non-matching line printed around a match.
type Context struct {
	Path           Data       `json:"path" yaml:"path"`
	Lines          Data       `json:"lines" yaml:"lines"`
	LineNumber     *uint64    `json:"line_number" yaml:"line_number"`
	AbsoluteOffset uint64     `json:"absolute_offset" yaml:"absolute_offset"`
	Submatches     []Submatch `json:"submatches" yaml:"submatches"`
}

// End marks the end of a file's results.
type End struct {
	Path         Data    `json:"path" yaml:"path"`
	BinaryOffset *uint64 `json:"binary_offset" yaml:"binary_offset"`
	Stats        Stats   `json:"stats" yaml:"stats"`
}

// Summary is the final message of a run.
type Summary struct {
	ElapsedTotal Elapsed `json:"elapsed_total" yaml:"elapsed_total"`
	Stats        Stats   `json:"stats" yaml:"stats"`
}

// Submatch is one match span within Lines. Start and End are byte offsets.
type Submatch struct {
	Match Data   `json:"match" yaml:"match"`
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Stats are the counters reported per file on End and for the whole run on
// Summary.
type Stats struct {
	Elapsed           Elapsed `json:"elapsed" yaml:"elapsed"`
	Searches          uint64  `json:"searches" yaml:"searches"`
	SearchesWithMatch uint64  `json:"searches_with_match" yaml:"searches_with_match"`
	BytesSearched     uint64  `json:"bytes_searched" yaml:"bytes_searched"`
	BytesPrinted      uint64  `json:"bytes_printed" yaml:"bytes_printed"`
	MatchedLines      uint64  `json:"matched_lines" yaml:"matched_lines"`
	Matches           uint64  `json:"matches" yaml:"matches"`
}

// Elapsed is a duration as reported by the engine.
type Elapsed struct {
	Secs  uint64 `json:"secs" yaml:"secs"`
	Nanos uint64 `json:"nanos" yaml:"nanos"`
	Human string `json:"human" yaml:"human"`
}

// Duration converts e to a time.Duration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.Secs)*time.Second + time.Duration(e.Nanos)
}

func (*Begin) Kind() Kind   { return KindBegin }
func (*Match) Kind() Kind   { return KindMatch }
func (*Context) Kind() Kind { return KindContext }
func (*End) Kind() Kind     { return KindEnd }
func (*Summary) Kind() Kind { return KindSummary }

func (*Begin) message()   {}
func (*Match) message()   {}
func (*Context) message() {}
func (*End) message()     {}
func (*Summary) message() {}

// Text returns the line text, or "" with ok=false for binary content.
func (m *Match) Text() (string, bool) { return m.Lines.Text() }

// Text returns the line text, or "" with ok=false for binary content.
func (c *Context) Text() (string, bool) { return c.Lines.Text() }
