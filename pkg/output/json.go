package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/computerscienceiscool/rgrun/pkg/message"
	"github.com/computerscienceiscool/rgrun/pkg/search"
)

// jsonPrinter re-emits results in the engine's own line protocol, so its
// output can be fed back through message.Decode.
type jsonPrinter struct {
	w io.Writer
}

func (p *jsonPrinter) PrintResult(res *search.SearchResult) error {
	msgs := make([]message.Message, 0, 2+len(res.Matches)+len(res.Context))
	msgs = append(msgs, res.Begin)
	msgs = append(msgs, orderedLines(res)...)
	msgs = append(msgs, res.End)

	for _, m := range msgs {
		if err := p.writeMessage(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *jsonPrinter) PrintPath(path string) error {
	b, err := json.Marshal(struct {
		Path string `json:"path"`
	}{Path: path})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.w, "%s\n", b)
	return err
}

func (p *jsonPrinter) PrintSummary(sum *message.Summary, _ int) error {
	if sum == nil {
		return nil
	}
	return p.writeMessage(sum)
}

func (p *jsonPrinter) writeMessage(m message.Message) error {
	b, err := message.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", m.Kind(), err)
	}
	_, err = fmt.Fprintf(p.w, "%s\n", b)
	return err
}

func (p *jsonPrinter) Close() error { return nil }
