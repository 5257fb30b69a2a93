package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/computerscienceiscool/rgrun/pkg/message"
	"github.com/computerscienceiscool/rgrun/pkg/search"
)

// textPrinter mimics rg's grouped human output: a path heading, then
// "N:line" for matches and "N-line" for context.
type textPrinter struct {
	w          io.Writer
	maxColumns int
	printed    int

	path    *color.Color
	lineNo  *color.Color
	match   *color.Color
	summary *color.Color
}

func newTextPrinter(w io.Writer, opts Options) *textPrinter {
	p := &textPrinter{
		w:          w,
		maxColumns: opts.MaxColumns,
		path:       color.New(color.FgMagenta, color.Bold),
		lineNo:     color.New(color.FgGreen),
		match:      color.New(color.FgRed, color.Bold),
		summary:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.path, p.lineNo, p.match, p.summary} {
		switch opts.Color {
		case "always":
			c.EnableColor()
		case "never":
			c.DisableColor()
		}
	}
	return p
}

func (p *textPrinter) PrintResult(res *search.SearchResult) error {
	var sb strings.Builder
	if p.printed > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(p.path.Sprint(displayPath(res.Path)))
	sb.WriteString("\n")

	for _, msg := range orderedLines(res) {
		switch m := msg.(type) {
		case *message.Match:
			sb.WriteString(p.formatLine(m.LineNumber, m.AbsoluteOffset, ':', m.Lines, m.Submatches))
		case *message.Context:
			sb.WriteString(p.formatLine(m.LineNumber, m.AbsoluteOffset, '-', m.Lines, nil))
		}
	}
	if res.End != nil && res.End.BinaryOffset != nil {
		fmt.Fprintf(&sb, "binary file matches (found NUL byte around offset %d)\n", *res.End.BinaryOffset)
	}

	p.printed++
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func (p *textPrinter) PrintPath(path string) error {
	_, err := fmt.Fprintln(p.w, p.path.Sprint(displayPath(path)))
	return err
}

func (p *textPrinter) PrintSummary(sum *message.Summary, files int) error {
	if sum == nil {
		return nil
	}
	line := fmt.Sprintf("%d matches in %d matched lines across %d files; searched %d files (%s) in %s",
		sum.Stats.Matches, sum.Stats.MatchedLines, files,
		sum.Stats.Searches, formatFileSize(int64(sum.Stats.BytesSearched)),
		sum.ElapsedTotal.Human)
	_, err := fmt.Fprintf(p.w, "\n%s\n", p.summary.Sprint(line))
	return err
}

func (p *textPrinter) Close() error { return nil }

func (p *textPrinter) formatLine(lineNumber *uint64, offset uint64, sep byte, lines message.Data, subs []message.Submatch) string {
	var prefix string
	if lineNumber != nil {
		prefix = p.lineNo.Sprint(*lineNumber) + string(sep)
	} else {
		prefix = p.lineNo.Sprintf("@%d", offset) + string(sep)
	}

	raw := bytes.TrimRight(lines.Raw(), "\r\n")
	if lines.IsBytes() {
		return prefix + decodeBytes(raw) + "\n"
	}

	text := string(raw)
	if p.maxColumns > 0 && runewidth.StringWidth(text) > p.maxColumns {
		return prefix + runewidth.Truncate(text, p.maxColumns, "…") + "\n"
	}
	return prefix + p.highlight(text, subs) + "\n"
}

// highlight colors the submatch spans of text. Spans are byte offsets.
func (p *textPrinter) highlight(text string, subs []message.Submatch) string {
	if len(subs) == 0 {
		return text
	}
	var sb strings.Builder
	last := 0
	for _, s := range subs {
		start, end := int(s.Start), int(s.End)
		if start < last || end > len(text) || start > end {
			continue
		}
		sb.WriteString(text[last:start])
		sb.WriteString(p.match.Sprint(text[start:end]))
		last = end
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// decodeBytes renders a line the engine could not report as UTF-8. UTF-16
// with a byte order mark is transcoded; anything else is read as
// Windows-1252 so every byte stays visible.
func decodeBytes(raw []byte) string {
	if utf8.Valid(raw) {
		return sanitize(string(raw))
	}
	if len(raw) >= 2 && ((raw[0] == 0xff && raw[1] == 0xfe) || (raw[0] == 0xfe && raw[1] == 0xff)) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		if out, _, err := transform.Bytes(dec, raw); err == nil {
			return sanitize(string(out))
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return sanitize(strings.ToValidUTF8(string(raw), "�"))
	}
	return sanitize(string(out))
}

// sanitize replaces control characters other than tab.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return '.'
		}
		return r
	}, s)
}

// displayPath normalizes decomposed file names (as stored by macOS) so
// they print and compare like typed text.
func displayPath(path string) string {
	return norm.NFC.String(path)
}

// formatFileSize formats file size in human readable format
func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
