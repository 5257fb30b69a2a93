package ripgrep

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
)

var ErrUnknownType = errors.New("UNKNOWN_FILE_TYPE")

// LineSource runs one engine invocation and exposes its raw output lines.
// *executor.Executor runs rg locally; the sandbox package runs it in a
// container.
type LineSource interface {
	Lines(ctx context.Context, spec executor.CmdSpec) iter.Seq2[string, error]
	Stream(ctx context.Context, spec executor.CmdSpec) (<-chan executor.Line, error)
}

// SortKey is the attribute results are sorted by. Sorting forces rg to use
// a single thread.
type SortKey string

const (
	SortNone     SortKey = "none"
	SortPath     SortKey = "path"
	SortModified SortKey = "modified"
	SortAccessed SortKey = "accessed"
	SortCreated  SortKey = "created"
)

// command holds the state shared by Find and Search. Options that may only
// appear once keep their first position.
type command struct {
	executable      string
	dir             string
	env             []string
	timeout         time.Duration
	noMatchExitCode int
	source          LineSource

	singular []string
	multiple []string
	targets  []string
	err      error
}

func newCommand() command {
	return command{
		executable:      config.DefaultExecutable,
		noMatchExitCode: config.DefaultNoMatchExitCode,
	}
}

func (c *command) addSingular(opt string) {
	if !slices.Contains(c.singular, opt) {
		c.singular = append(c.singular, opt)
	}
}

func (c *command) addMultiple(opts ...string) {
	c.multiple = append(c.multiple, opts...)
}

func (c *command) addType(flag, name string) {
	if !KnownType(name) {
		if c.err == nil {
			c.err = fmt.Errorf("%w: %q", ErrUnknownType, name)
		}
		return
	}
	c.addMultiple(flag + "=" + name)
}

func (c *command) caseSensitive(sensitive bool) {
	if !sensitive {
		c.addMultiple("--ignore-case")
	}
}

func (c *command) sort(key SortKey, ascending bool) {
	if ascending {
		c.addMultiple("--sort=" + string(key))
	} else {
		c.addMultiple("--sortr=" + string(key))
	}
}

func (c *command) maxDepth(depth int) {
	c.addMultiple("--max-depth=" + strconv.Itoa(depth))
}

// argv returns the full argument vector including the executable, with
// extra singular options added to a copy of the builder state.
func (c *command) argv(extra ...string) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	singular := slices.Clone(c.singular)
	for _, opt := range extra {
		if !slices.Contains(singular, opt) {
			singular = append(singular, opt)
		}
	}

	argv := make([]string, 0, 1+len(singular)+len(c.multiple)+len(c.targets))
	argv = append(argv, c.executable)
	argv = append(argv, singular...)
	argv = append(argv, c.multiple...)
	argv = append(argv, c.targets...)
	return argv, nil
}

// spec snapshots the builder into a process description. Later builder
// changes do not affect it.
func (c *command) spec(extra ...string) (executor.CmdSpec, error) {
	argv, err := c.argv(extra...)
	if err != nil {
		return executor.CmdSpec{}, err
	}
	return executor.CmdSpec{
		Path:            argv[0],
		Args:            argv[1:],
		Dir:             c.dir,
		Env:             slices.Clone(c.env),
		Timeout:         c.timeout,
		NoMatchExitCode: c.noMatchExitCode,
	}, nil
}

func (c *command) lineSource() LineSource {
	if c.source == nil {
		return executor.NewExecutor(config.DefaultScanBufferSize)
	}
	return c.source
}

// lines runs the snapshot spec through the line source, reporting a
// compile error as the only element.
func (c *command) lines(ctx context.Context, extra ...string) iter.Seq2[string, error] {
	spec, err := c.spec(extra...)
	if err != nil {
		return func(yield func(string, error) bool) { yield("", err) }
	}
	return c.lineSource().Lines(ctx, spec)
}

func (c *command) stream(ctx context.Context, extra ...string) (<-chan executor.Line, error) {
	spec, err := c.spec(extra...)
	if err != nil {
		return nil, err
	}
	return c.lineSource().Stream(ctx, spec)
}

func compileString(argv []string) string {
	return strings.Join(argv, " ")
}
