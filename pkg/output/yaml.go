package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/computerscienceiscool/rgrun/pkg/message"
	"github.com/computerscienceiscool/rgrun/pkg/search"
)

// yamlPrinter writes one YAML document per file, with context lines
// grouped around each match.
type yamlPrinter struct {
	enc  *yaml.Encoder
	opts Options
}

type yamlFile struct {
	search.MatchedFile `yaml:",inline"`
	Stats              message.Stats `yaml:"stats"`
	BinaryOffset       *uint64       `yaml:"binary_offset,omitempty"`
}

func newYAMLPrinter(w io.Writer, opts Options) *yamlPrinter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &yamlPrinter{enc: enc, opts: opts}
}

func (p *yamlPrinter) PrintResult(res *search.SearchResult) error {
	doc := yamlFile{
		MatchedFile: *search.FromSearchResult(res, p.opts.BeforeContext, p.opts.AfterContext, p.opts.IncludeEmpty),
	}
	if res.End != nil {
		doc.Stats = res.End.Stats
		doc.BinaryOffset = res.End.BinaryOffset
	}
	return p.encode(doc)
}

func (p *yamlPrinter) PrintPath(path string) error {
	return p.encode(map[string]string{"path": path})
}

func (p *yamlPrinter) PrintSummary(sum *message.Summary, files int) error {
	if sum == nil {
		return nil
	}
	return p.encode(map[string]interface{}{
		"summary": sum,
		"files":   files,
	})
}

func (p *yamlPrinter) Close() error {
	return p.enc.Close()
}

func (p *yamlPrinter) encode(v interface{}) error {
	if err := p.enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return nil
}
