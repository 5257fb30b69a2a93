package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
	"github.com/computerscienceiscool/rgrun/pkg/ripgrep"
	"github.com/computerscienceiscool/rgrun/pkg/sandbox"
	"github.com/computerscienceiscool/rgrun/pkg/workspace"
)

const doctorTimeout = 30 * time.Second

// Check is the outcome of one doctor check
type Check struct {
	Name    string
	OK      bool
	Skipped bool
	Detail  string
}

// DoctorOptions selects optional doctor work
type DoctorOptions struct {
	PullImage bool // pull the sandbox image when it is missing
}

// selfTestFiles is the fixture repository searched by the self test. The
// ignored copy must not be reported.
var selfTestFiles = map[string]string{
	".gitignore":      "build/\n",
	"main.go":         "package main\n\nfunc needle() {}\n",
	"README.md":       "no match here\n",
	"build/needle.go": "package build\n\nfunc needle() {}\n",
}

// Doctor runs pre-flight checks, prints one line per check and returns an
// error if any check failed.
func (a *App) Doctor(ctx context.Context, opts DoctorOptions) ([]Check, error) {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	var checks []Check
	engine := a.checkEngine(ctx)
	checks = append(checks, engine)
	if engine.OK {
		checks = append(checks, a.checkSelfTest(ctx))
	} else {
		checks = append(checks, Check{Name: "self-test", Skipped: true, Detail: "engine unavailable"})
	}
	checks = append(checks, a.checkSandbox(ctx, opts))
	checks = append(checks, a.checkHistory())

	failed := 0
	for _, c := range checks {
		status := "ok"
		switch {
		case c.Skipped:
			status = "skip"
		case !c.OK:
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(a.stdout, "%-5s %-10s %s\n", status, c.Name, c.Detail)
	}

	if failed > 0 {
		return checks, fmt.Errorf("%d doctor checks failed", failed)
	}
	log.Info().Msg("doctor checks passed")
	return checks, nil
}

// checkEngine runs "rg --version" and compares it with MinEngineVersion.
func (a *App) checkEngine(ctx context.Context) Check {
	c := Check{Name: "engine"}
	runner := executor.NewExecutor(a.config.Engine.MaxLineSize)

	var first string
	for line, err := range runner.Lines(ctx, executor.CmdSpec{Path: a.config.Engine.Path, Args: []string{"--version"}}) {
		if err != nil {
			c.Detail = err.Error()
			return c
		}
		if first == "" {
			first = strings.TrimSpace(line)
		}
	}

	v, err := parseSemver(first)
	if err != nil {
		c.Detail = fmt.Sprintf("could not parse version from %q", first)
		return c
	}
	constraint, err := semver.NewConstraint(config.MinEngineVersion)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	if !constraint.Check(v) {
		c.Detail = fmt.Sprintf("%s version %s does not satisfy %s", a.config.Engine.Path, v, config.MinEngineVersion)
		return c
	}

	c.OK = true
	c.Detail = fmt.Sprintf("%s %s", a.config.Engine.Path, v)
	return c
}

// checkSelfTest searches a fixture repository and checks that ignored files
// are skipped and that blocking and streaming runs agree.
func (a *App) checkSelfTest(ctx context.Context) Check {
	c := Check{Name: "self-test"}
	dir, _, err := workspace.CreateRepo(selfTestFiles)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	defer workspace.Cleanup(dir)

	newSearch := func() *ripgrep.Search {
		return ripgrep.NewSearch().
			SetExecutable(a.config.Engine.Path).
			SetWorkingDirectory(dir).
			SetSource(executor.NewExecutor(a.config.Engine.MaxLineSize)).
			AddPattern("needle")
	}

	var paths []string
	for res, err := range newSearch().Run(ctx) {
		if err != nil {
			c.Detail = err.Error()
			return c
		}
		paths = append(paths, filepath.ToSlash(res.Path))
	}
	if len(paths) != 1 || strings.TrimPrefix(paths[0], "./") != "main.go" {
		c.Detail = fmt.Sprintf("expected a match in main.go only, got %v", paths)
		return c
	}

	results, err := newSearch().Stream(ctx)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	streamed := 0
	for msg := range results {
		if msg.Err != nil {
			c.Detail = msg.Err.Error()
			return c
		}
		streamed++
	}
	if streamed != len(paths) {
		c.Detail = fmt.Sprintf("streaming returned %d files, blocking %d", streamed, len(paths))
		return c
	}

	c.OK = true
	c.Detail = "fixture search passed"
	return c
}

func (a *App) checkSandbox(ctx context.Context, opts DoctorOptions) Check {
	c := Check{Name: "sandbox"}
	if !a.config.Sandbox.Enabled {
		c.Skipped = true
		c.Detail = "disabled"
		return c
	}
	if err := sandbox.CheckDockerAvailability(ctx); err != nil {
		c.Detail = err.Error()
		return c
	}
	if opts.PullImage {
		if err := sandbox.PullDockerImage(ctx, a.config.Sandbox.Image); err != nil {
			c.Detail = err.Error()
			return c
		}
	}
	c.OK = true
	c.Detail = "docker reachable, image " + a.config.Sandbox.Image
	return c
}

func (a *App) checkHistory() Check {
	c := Check{Name: "history"}
	if !a.config.History.Enabled {
		c.Skipped = true
		c.Detail = "disabled"
		return c
	}
	if _, err := a.historyStore(); err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = a.config.History.Path
	return c
}

// parseSemver extracts the first field of s that parses as a version.
func parseSemver(s string) (*semver.Version, error) {
	for _, f := range strings.Fields(s) {
		f = strings.TrimPrefix(f, "v")
		if v, err := semver.NewVersion(f); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no version in %q", s)
}
