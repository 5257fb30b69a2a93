package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
	"github.com/computerscienceiscool/rgrun/pkg/history"
	"github.com/computerscienceiscool/rgrun/pkg/ripgrep"
	"github.com/computerscienceiscool/rgrun/pkg/sandbox"
	"github.com/computerscienceiscool/rgrun/pkg/workspace"
)

// App represents the main application
type App struct {
	config *config.Config
	store  history.Store
	stdout io.Writer
	stderr io.Writer
}

// Request is one search or find invocation as assembled by the CLI.
// Zero values leave the engine's own defaults in place.
type Request struct {
	Patterns []string
	Targets  []string
	Dir      string
	GitRoot  bool

	IncludeGlobs []string
	ExcludeGlobs []string
	Types        []string
	TypesNot     []string

	IgnoreCase   bool
	FixedStrings bool
	Before       int
	After        int
	MaxDepth     int
	MaxCount     int
	Sort         string
	SortReverse  bool

	Async  bool
	Stats  bool
	Record bool
}

// Bootstrap initializes and returns a configured App
func Bootstrap(cfg *config.Config, stdout, stderr io.Writer) (*App, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &App{config: cfg, stdout: stdout, stderr: stderr}, nil
}

// Close releases the history store if one was opened.
func (a *App) Close() error {
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}

// GetConfig returns the app's configuration
func (a *App) GetConfig() *config.Config {
	return a.config
}

// historyStore opens the history database on first use.
func (a *App) historyStore() (history.Store, error) {
	if a.store == nil {
		store, err := history.Open(a.config.History.Path)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a.store, nil
}

// invocation is a request resolved against the configuration: where rg runs,
// what it searches and through which line source.
type invocation struct {
	dir        string
	targets    []string
	executable string
	source     ripgrep.LineSource
}

func (a *App) resolve(req Request) (*invocation, error) {
	dir := req.Dir
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve working directory: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("working directory does not exist: %w", err)
	}
	if req.GitRoot {
		root, err := workspace.FindRoot(dir)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("dir", dir).Str("root", root).Msg("using git root")
		dir = root
	}

	inv := &invocation{
		dir:        dir,
		targets:    req.Targets,
		executable: a.config.Engine.Path,
		source:     executor.NewExecutor(a.config.Engine.MaxLineSize),
	}
	if !a.config.Sandbox.Enabled {
		return inv, nil
	}

	// The container sees the repository containing dir, mounted read-only.
	root, err := workspace.FindRoot(dir)
	if err != nil {
		root = dir
	}
	runner, err := sandbox.NewRunner(sandbox.ContainerConfig{
		Image:       a.config.Sandbox.Image,
		RepoRoot:    root,
		MemoryLimit: a.config.Sandbox.Memory,
		CPULimit:    a.config.Sandbox.CPUs,
		Timeout:     a.config.Sandbox.Timeout,
		MaxLineSize: a.config.Engine.MaxLineSize,
	})
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(req.Targets))
	for _, t := range req.Targets {
		if !filepath.IsAbs(t) {
			t = filepath.Join(dir, t)
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		targets = append(targets, dir)
	}
	mapped, err := sandbox.ContainerPaths(targets, root)
	if err != nil {
		return nil, err
	}

	inv.targets = mapped
	inv.source = runner
	if filepath.IsAbs(inv.executable) {
		// Host paths mean nothing inside the image.
		inv.executable = config.DefaultExecutable
	}
	return inv, nil
}
