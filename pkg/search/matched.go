package search

import (
	"sort"
	"strings"
)

// NumberedLine is a single line of a file with its 1-based line number.
type NumberedLine struct {
	Number uint64 `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
}

// MatchedLine is a matching line with the context lines printed around it.
type MatchedLine struct {
	Before []NumberedLine `json:"before,omitempty" yaml:"before,omitempty"`
	Match  NumberedLine   `json:"match" yaml:"match"`
	After  []NumberedLine `json:"after,omitempty" yaml:"after,omitempty"`
}

// MatchedFile is a file's matches with context attached to each match.
type MatchedFile struct {
	Path    string        `json:"path" yaml:"path"`
	Matches []MatchedLine `json:"matches" yaml:"matches"`
}

// FromSearchResult groups the context lines of res around its matches.
// before and after should be the context sizes the search ran with. A
// context line is attached to at most one match, and never crosses another
// match. Matches and context without line numbers or reported as raw bytes
// (binary or non-UTF-8 content) are ignored; a bytes match still bounds
// the context of its neighbours. Trailing whitespace is trimmed; lines left empty are dropped
// unless includeEmpty is set.
func FromSearchResult(res *SearchResult, before, after int, includeEmpty bool) *MatchedFile {
	mf := &MatchedFile{Path: res.Path}

	matched := make(map[uint64]bool, len(res.Matches))
	for _, m := range res.Matches {
		if m.LineNumber != nil {
			matched[*m.LineNumber] = true
		}
	}
	ctxLines := make(map[uint64]string, len(res.Context))
	for _, c := range res.Context {
		if c.LineNumber != nil && c.Lines.IsText() {
			ctxLines[*c.LineNumber] = c.Lines.String()
		}
	}

	// take removes a context line so it is attached only once.
	take := func(n uint64) (NumberedLine, bool) {
		text, ok := ctxLines[n]
		if !ok {
			return NumberedLine{}, false
		}
		delete(ctxLines, n)
		text = strings.TrimRight(text, " \t\r\n")
		if text == "" && !includeEmpty {
			return NumberedLine{}, false
		}
		return NumberedLine{Number: n, Text: text}, true
	}

	ordered := make([]uint64, 0, len(matched))
	texts := make(map[uint64]string, len(matched))
	for _, m := range res.Matches {
		if m.LineNumber == nil || !m.Lines.IsText() {
			continue
		}
		n := *m.LineNumber
		if _, dup := texts[n]; !dup {
			ordered = append(ordered, n)
		}
		texts[n] = m.Lines.String()
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, n := range ordered {
		ml := MatchedLine{Match: NumberedLine{Number: n, Text: strings.TrimRight(texts[n], " \t\r\n")}}

		for i := 1; i <= before && uint64(i) < n; i++ {
			ln := n - uint64(i)
			if matched[ln] {
				break
			}
			if l, ok := take(ln); ok {
				ml.Before = append(ml.Before, l)
			}
		}
		// Collected nearest first.
		for i, j := 0, len(ml.Before)-1; i < j; i, j = i+1, j-1 {
			ml.Before[i], ml.Before[j] = ml.Before[j], ml.Before[i]
		}

		for i := 1; i <= after; i++ {
			ln := n + uint64(i)
			if matched[ln] {
				break
			}
			if l, ok := take(ln); ok {
				ml.After = append(ml.After, l)
			}
		}

		mf.Matches = append(mf.Matches, ml)
	}
	return mf
}
