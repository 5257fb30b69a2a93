package ripgrep

import (
	"context"
	"iter"
	"strconv"
	"time"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
	"github.com/computerscienceiscool/rgrun/pkg/search"
)

// Search runs rg with a set of patterns and aggregates its --json output
// into per-file results.
type Search struct {
	cmd command
}

// NewSearch returns a search builder for the default executable.
func NewSearch() *Search {
	return &Search{cmd: newCommand()}
}

// CaseSensitive adds --ignore-case when sensitive is false.
func (s *Search) CaseSensitive(sensitive bool) *Search {
	s.cmd.caseSensitive(sensitive)
	return s
}

func (s *Search) Sort(key SortKey, ascending bool) *Search {
	s.cmd.sort(key, ascending)
	return s
}

// AddSafeDefaults limits the traversal depth, the size of searched files
// and the number of matches reported per file.
func (s *Search) AddSafeDefaults() *Search {
	s.cmd.maxDepth(config.DefaultMaxDepth)
	s.MaxFileSize(config.DefaultMaxFileSize)
	s.MaxCount(config.DefaultMaxCount)
	return s
}

func (s *Search) AddDirectory(dir string) *Search {
	s.cmd.targets = append(s.cmd.targets, dir)
	return s
}

func (s *Search) AddDirectories(dirs []string) *Search {
	s.cmd.targets = append(s.cmd.targets, dirs...)
	return s
}

func (s *Search) IncludeGlob(glob string) *Search {
	s.cmd.addMultiple("--glob=" + glob)
	return s
}

func (s *Search) IncludeGlobs(globs []string) *Search {
	for _, g := range globs {
		s.IncludeGlob(g)
	}
	return s
}

func (s *Search) ExcludeGlob(glob string) *Search {
	s.cmd.addMultiple("--glob=!" + glob)
	return s
}

func (s *Search) ExcludeGlobs(globs []string) *Search {
	for _, g := range globs {
		s.ExcludeGlob(g)
	}
	return s
}

// IncludeType restricts results to a built-in file type. Unknown types
// make Compile and Run fail with ErrUnknownType.
func (s *Search) IncludeType(name string) *Search {
	s.cmd.addType("--type", name)
	return s
}

func (s *Search) IncludeTypes(names []string) *Search {
	for _, n := range names {
		s.IncludeType(n)
	}
	return s
}

func (s *Search) ExcludeType(name string) *Search {
	s.cmd.addType("--type-not", name)
	return s
}

func (s *Search) ExcludeTypes(names []string) *Search {
	for _, n := range names {
		s.ExcludeType(n)
	}
	return s
}

func (s *Search) OneFileSystem() *Search {
	s.cmd.addSingular("--one-file-system")
	return s
}

func (s *Search) MaxDepth(depth int) *Search {
	s.cmd.maxDepth(depth)
	return s
}

func (s *Search) SetWorkingDirectory(dir string) *Search {
	s.cmd.dir = dir
	return s
}

func (s *Search) SetExecutable(path string) *Search {
	s.cmd.executable = path
	return s
}

// SetNoMatchExitCode overrides the exit status treated as "nothing found".
func (s *Search) SetNoMatchExitCode(code int) *Search {
	s.cmd.noMatchExitCode = code
	return s
}

func (s *Search) SetTimeout(d time.Duration) *Search {
	s.cmd.timeout = d
	return s
}

func (s *Search) SetEnv(env []string) *Search {
	s.cmd.env = env
	return s
}

// SetSource replaces the local executor, e.g. with a container runner.
func (s *Search) SetSource(src LineSource) *Search {
	s.cmd.source = src
	return s
}

// AddPattern adds a regular expression. Several patterns match as
// alternatives.
func (s *Search) AddPattern(pattern string) *Search {
	s.cmd.addMultiple("--regexp=" + pattern)
	return s
}

func (s *Search) AddPatterns(patterns []string) *Search {
	for _, p := range patterns {
		s.AddPattern(p)
	}
	return s
}

func (s *Search) AddFile(path string) *Search {
	s.cmd.targets = append(s.cmd.targets, path)
	return s
}

func (s *Search) AddFiles(paths []string) *Search {
	s.cmd.targets = append(s.cmd.targets, paths...)
	return s
}

// AddExtraOptions appends raw rg options verbatim.
func (s *Search) AddExtraOptions(opts []string) *Search {
	s.cmd.addMultiple(opts...)
	return s
}

func (s *Search) BeforeContext(lines int) *Search {
	s.cmd.addMultiple("--before-context=" + strconv.Itoa(lines))
	return s
}

func (s *Search) AfterContext(lines int) *Search {
	s.cmd.addMultiple("--after-context=" + strconv.Itoa(lines))
	return s
}

// AutoHybridRegex lets rg switch to PCRE2 for patterns its default engine
// cannot handle.
func (s *Search) AutoHybridRegex() *Search {
	s.cmd.addSingular("--auto-hybrid-regex")
	return s
}

// FixedStrings treats every pattern as a literal.
func (s *Search) FixedStrings() *Search {
	s.cmd.addSingular("--fixed-strings")
	return s
}

// MaxCount limits the number of matching lines reported per file.
func (s *Search) MaxCount(count int) *Search {
	s.cmd.addMultiple("--max-count=" + strconv.Itoa(count))
	return s
}

// MaxFileSize skips files larger than size bytes.
func (s *Search) MaxFileSize(size int64) *Search {
	s.cmd.addMultiple("--max-filesize=" + strconv.FormatInt(size, 10))
	return s
}

func (s *Search) AsJSON() *Search {
	s.cmd.addSingular("--json")
	return s
}

// Compile returns the argument vector, executable first.
func (s *Search) Compile() ([]string, error) {
	return s.cmd.argv()
}

func (s *Search) CompileString() (string, error) {
	argv, err := s.Compile()
	if err != nil {
		return "", err
	}
	return compileString(argv), nil
}

// RunDirect yields rg's raw output lines, in whatever format the builder
// selected.
func (s *Search) RunDirect(ctx context.Context) iter.Seq2[string, error] {
	return s.cmd.lines(ctx)
}

// StreamDirect is the non-blocking counterpart of RunDirect.
func (s *Search) StreamDirect(ctx context.Context) (<-chan executor.Line, error) {
	return s.cmd.stream(ctx)
}

// Run yields one result per file with matches, in rg's output order. JSON
// output is requested for this invocation only; the builder is unchanged.
func (s *Search) Run(ctx context.Context) iter.Seq2[*search.SearchResult, error] {
	return search.Aggregate(s.cmd.lines(ctx, "--json"))
}

// RunWith is Run with a caller-owned aggregator, which exposes the trailing
// summary once the sequence is exhausted.
func (s *Search) RunWith(ctx context.Context, agg *search.Aggregator) iter.Seq2[*search.SearchResult, error] {
	return search.AggregateWith(agg, s.cmd.lines(ctx, "--json"))
}

// Stream is the non-blocking counterpart of Run. Start failures are
// returned directly. Cancel ctx to abandon the stream.
func (s *Search) Stream(ctx context.Context) (<-chan search.ResultMsg, error) {
	ctx, cancel := context.WithCancel(ctx)
	lines, err := s.cmd.stream(ctx, "--json")
	if err != nil {
		cancel()
		return nil, err
	}
	return search.AggregateStream(ctx, lines, cancel), nil
}

// StreamWith is Stream with a caller-owned aggregator. Its summary is
// available once the returned channel is closed.
func (s *Search) StreamWith(ctx context.Context, agg *search.Aggregator) (<-chan search.ResultMsg, error) {
	ctx, cancel := context.WithCancel(ctx)
	lines, err := s.cmd.stream(ctx, "--json")
	if err != nil {
		cancel()
		return nil, err
	}
	return search.AggregateStreamWith(ctx, agg, lines, cancel), nil
}
