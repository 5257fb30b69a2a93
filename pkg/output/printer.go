package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/computerscienceiscool/rgrun/pkg/message"
	"github.com/computerscienceiscool/rgrun/pkg/search"
)

// Printer writes search results, found paths and the run summary to an
// output stream in one format.
type Printer interface {
	PrintResult(res *search.SearchResult) error
	PrintPath(path string) error
	PrintSummary(sum *message.Summary, files int) error
	Close() error
}

// Options tune printing. BeforeContext and AfterContext should match the
// context sizes the search ran with.
type Options struct {
	Color         string // auto, always or never
	MaxColumns    int
	BeforeContext int
	AfterContext  int
	IncludeEmpty  bool
}

// New returns the printer for format ("text", "json" or "yaml").
func New(format string, w io.Writer, opts Options) (Printer, error) {
	switch format {
	case "text", "":
		return newTextPrinter(w, opts), nil
	case "json":
		return &jsonPrinter{w: w}, nil
	case "yaml":
		return newYAMLPrinter(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// orderedLines returns the match and context messages of res in file order.
func orderedLines(res *search.SearchResult) []message.Message {
	type entry struct {
		offset uint64
		msg    message.Message
	}
	entries := make([]entry, 0, len(res.Matches)+len(res.Context))
	for _, m := range res.Matches {
		entries = append(entries, entry{m.AbsoluteOffset, m})
	}
	for _, c := range res.Context {
		entries = append(entries, entry{c.AbsoluteOffset, c})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	msgs := make([]message.Message, len(entries))
	for i, e := range entries {
		msgs[i] = e.msg
	}
	return msgs
}
