package ripgrep

import (
	"context"
	"iter"
	"time"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
)

// Find lists the files rg would search, one path per output line.
type Find struct {
	cmd command
}

// NewFind returns a find builder for the default executable.
func NewFind() *Find {
	return &Find{cmd: newCommand()}
}

// CaseSensitive adds --ignore-case when sensitive is false.
func (f *Find) CaseSensitive(sensitive bool) *Find {
	f.cmd.caseSensitive(sensitive)
	return f
}

func (f *Find) Sort(key SortKey, ascending bool) *Find {
	f.cmd.sort(key, ascending)
	return f
}

// AddSafeDefaults limits the traversal depth.
func (f *Find) AddSafeDefaults() *Find {
	f.cmd.maxDepth(config.DefaultMaxDepth)
	return f
}

func (f *Find) AddDirectory(dir string) *Find {
	f.cmd.targets = append(f.cmd.targets, dir)
	return f
}

func (f *Find) AddDirectories(dirs []string) *Find {
	f.cmd.targets = append(f.cmd.targets, dirs...)
	return f
}

func (f *Find) IncludeGlob(glob string) *Find {
	f.cmd.addMultiple("--glob=" + glob)
	return f
}

func (f *Find) IncludeGlobs(globs []string) *Find {
	for _, g := range globs {
		f.IncludeGlob(g)
	}
	return f
}

func (f *Find) ExcludeGlob(glob string) *Find {
	f.cmd.addMultiple("--glob=!" + glob)
	return f
}

func (f *Find) ExcludeGlobs(globs []string) *Find {
	for _, g := range globs {
		f.ExcludeGlob(g)
	}
	return f
}

// IncludeType restricts results to a built-in file type. Unknown types
// make Compile and Run fail with ErrUnknownType.
func (f *Find) IncludeType(name string) *Find {
	f.cmd.addType("--type", name)
	return f
}

func (f *Find) IncludeTypes(names []string) *Find {
	for _, n := range names {
		f.IncludeType(n)
	}
	return f
}

func (f *Find) ExcludeType(name string) *Find {
	f.cmd.addType("--type-not", name)
	return f
}

func (f *Find) ExcludeTypes(names []string) *Find {
	for _, n := range names {
		f.ExcludeType(n)
	}
	return f
}

func (f *Find) OneFileSystem() *Find {
	f.cmd.addSingular("--one-file-system")
	return f
}

func (f *Find) MaxDepth(depth int) *Find {
	f.cmd.maxDepth(depth)
	return f
}

// SetWorkingDirectory sets the directory rg runs in. Relative targets and
// the reported paths are relative to it.
func (f *Find) SetWorkingDirectory(dir string) *Find {
	f.cmd.dir = dir
	return f
}

func (f *Find) SetExecutable(path string) *Find {
	f.cmd.executable = path
	return f
}

// SetNoMatchExitCode overrides the exit status treated as "nothing found".
func (f *Find) SetNoMatchExitCode(code int) *Find {
	f.cmd.noMatchExitCode = code
	return f
}

func (f *Find) SetTimeout(d time.Duration) *Find {
	f.cmd.timeout = d
	return f
}

func (f *Find) SetEnv(env []string) *Find {
	f.cmd.env = env
	return f
}

// SetSource replaces the local executor, e.g. with a container runner.
func (f *Find) SetSource(src LineSource) *Find {
	f.cmd.source = src
	return f
}

// Compile returns the argument vector, executable first, without --files.
func (f *Find) Compile() ([]string, error) {
	return f.cmd.argv()
}

func (f *Find) CompileString() (string, error) {
	argv, err := f.Compile()
	if err != nil {
		return "", err
	}
	return compileString(argv), nil
}

// Run lists matching files lazily. The argument vector is captured when Run
// is called.
func (f *Find) Run(ctx context.Context) iter.Seq2[string, error] {
	return f.cmd.lines(ctx, "--files")
}

// Stream is the non-blocking counterpart of Run. Cancel ctx to abandon it.
func (f *Find) Stream(ctx context.Context) (<-chan executor.Line, error) {
	return f.cmd.stream(ctx, "--files")
}
