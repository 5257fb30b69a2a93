package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
	"github.com/computerscienceiscool/rgrun/pkg/sandbox"
	"github.com/computerscienceiscool/rgrun/pkg/workspace"
)

const fakeStats = `{"elapsed":{"secs":0,"nanos":1,"human":"0s"},"searches":1,"searches_with_match":1,"bytes_searched":1,"bytes_printed":1,"matched_lines":1,"matches":1}`

var fakeJSON = strings.Join([]string{
	`{"type":"begin","data":{"path":{"text":"a.txt"}}}`,
	`{"type":"match","data":{"path":{"text":"a.txt"},"lines":{"text":"needle\n"},"line_number":1,"absolute_offset":0,"submatches":[{"match":{"text":"needle"},"start":0,"end":6}]}}`,
	`{"type":"end","data":{"path":{"text":"a.txt"},"binary_offset":null,"stats":` + fakeStats + `}}`,
	`{"type":"begin","data":{"path":{"text":"b.txt"}}}`,
	`{"type":"match","data":{"path":{"text":"b.txt"},"lines":{"text":"needle again\n"},"line_number":4,"absolute_offset":30,"submatches":[{"match":{"text":"needle"},"start":0,"end":6}]}}`,
	`{"type":"end","data":{"path":{"text":"b.txt"},"binary_offset":null,"stats":` + fakeStats + `}}`,
	`{"type":"summary","data":{"elapsed_total":{"secs":0,"nanos":5,"human":"0s"},"stats":` + fakeStats + `}}`,
}, "\n")

// Helper writing a stand-in engine that records its arguments, prints
// stdout and exits with code
func fakeEngine(t *testing.T, stdout string, code int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s\\n' \"$@\" > %q\n", argsFile)
	if stdout != "" {
		script += "cat <<'RGRUN_EOF'\n" + stdout + "\nRGRUN_EOF\n"
	}
	script += fmt.Sprintf("exit %d\n", code)

	path := filepath.Join(dir, "rg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path, argsFile
}

func recordedArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	b, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

// Helper returning a plain-text configuration for engine
func testConfig(t *testing.T, engine string) *config.Config {
	t.Helper()
	return &config.Config{
		Engine: config.EngineConfig{
			Path:            engine,
			NoMatchExitCode: config.DefaultNoMatchExitCode,
			MaxLineSize:     config.DefaultScanBufferSize,
		},
		Search: config.SearchConfig{
			MaxDepth:    config.DefaultMaxDepth,
			MaxCount:    config.DefaultMaxCount,
			MaxFileSize: config.DefaultMaxFileSize,
		},
		Output: config.OutputConfig{Format: "text", Color: "never"},
		History: config.HistoryConfig{
			Path:  filepath.Join(t.TempDir(), "history.db"),
			Limit: config.DefaultHistoryLimit,
		},
		Sandbox: config.SandboxConfig{
			Image:   config.DefaultSandboxImage,
			Memory:  config.DefaultSandboxMemory,
			CPUs:    config.DefaultSandboxCPUs,
			Timeout: config.DefaultSandboxTimeout,
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := Bootstrap(cfg, &out, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, &out
}

func TestSearch(t *testing.T) {
	for _, async := range []bool{false, true} {
		t.Run(fmt.Sprintf("async=%v", async), func(t *testing.T) {
			engine, argsFile := fakeEngine(t, fakeJSON, 0)
			a, out := newTestApp(t, testConfig(t, engine))

			found, err := a.Search(context.Background(), Request{
				Patterns:   []string{"needle"},
				Dir:        t.TempDir(),
				IgnoreCase: true,
				Async:      async,
			})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if found != 2 {
				t.Errorf("found = %d, want 2", found)
			}

			want := "a.txt\n1:needle\n\nb.txt\n4:needle again\n"
			if out.String() != want {
				t.Errorf("output =\n%q\nwant\n%q", out.String(), want)
			}

			args := recordedArgs(t, argsFile)
			for _, arg := range []string{"--json", "--regexp=needle", "--ignore-case"} {
				if !slices.Contains(args, arg) {
					t.Errorf("engine args %q missing %s", args, arg)
				}
			}
		})
	}
}

func TestSearch_Stats(t *testing.T) {
	engine, _ := fakeEngine(t, fakeJSON, 0)
	a, out := newTestApp(t, testConfig(t, engine))

	if _, err := a.Search(context.Background(), Request{Patterns: []string{"needle"}, Dir: t.TempDir(), Stats: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "1 matches in 1 matched lines across 2 files") {
		t.Errorf("summary missing: %q", out.String())
	}
}

func TestSearch_Options(t *testing.T) {
	engine, argsFile := fakeEngine(t, "", 1)
	cfg := testConfig(t, engine)
	cfg.Search.SafeDefaults = true
	cfg.Search.DefaultExcludes = true
	cfg.Search.ExcludeGlobs = []string{"vendor/**"}
	a, _ := newTestApp(t, cfg)

	_, err := a.Search(context.Background(), Request{
		Patterns:     []string{"x"},
		Targets:      []string{"src"},
		Dir:          t.TempDir(),
		Types:        []string{"json"},
		IncludeGlobs: []string{"*.go"},
		FixedStrings: true,
		Before:       2,
		After:        1,
		MaxCount:     7,
		Sort:         "path",
		SortReverse:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	args := recordedArgs(t, argsFile)
	for _, arg := range []string{
		"--fixed-strings", "--before-context=2", "--after-context=1",
		"--max-depth=15", "--max-count=7", "--max-filesize=52428800",
		"--glob=*.go", "--glob=!vendor/**", "--type=json", "--type-not=gzip",
		"--sortr=path", "src",
	} {
		if !slices.Contains(args, arg) {
			t.Errorf("engine args %q missing %s", args, arg)
		}
	}
	if slices.Contains(args, "--type-not=json") {
		t.Error("an explicitly requested type should not be excluded")
	}
}

func TestSearch_NoMatches(t *testing.T) {
	engine, _ := fakeEngine(t, "", 1)
	a, out := newTestApp(t, testConfig(t, engine))

	found, err := a.Search(context.Background(), Request{Patterns: []string{"x"}, Dir: t.TempDir()})
	if err != nil || found != 0 {
		t.Errorf("Search() = %d, %v; want 0, nil", found, err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestSearch_Errors(t *testing.T) {
	engine, _ := fakeEngine(t, "", 2)
	a, _ := newTestApp(t, testConfig(t, engine))
	ctx := context.Background()

	if _, err := a.Search(ctx, Request{Dir: t.TempDir()}); err == nil {
		t.Error("expected error without patterns")
	}
	if _, err := a.Search(ctx, Request{Patterns: []string{"x"}, Dir: t.TempDir(), Sort: "size"}); err == nil {
		t.Error("expected error for unknown sort key")
	}
	if _, err := a.Search(ctx, Request{Patterns: []string{"x"}, Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for a missing directory")
	}
	if _, err := a.Search(ctx, Request{Patterns: []string{"x"}, Dir: t.TempDir()}); !errors.Is(err, executor.ErrExecutionFailed) {
		t.Errorf("expected ErrExecutionFailed, got %v", err)
	}
	if _, err := a.Search(ctx, Request{Patterns: []string{"x"}, Dir: t.TempDir(), Async: true}); !errors.Is(err, executor.ErrExecutionFailed) {
		t.Errorf("expected ErrExecutionFailed from async run, got %v", err)
	}
}

func TestSearch_RecordsHistory(t *testing.T) {
	engine, _ := fakeEngine(t, fakeJSON, 0)
	cfg := testConfig(t, engine)
	cfg.History.Enabled = true
	a, out := newTestApp(t, cfg)

	if _, err := a.Search(context.Background(), Request{Patterns: []string{"needle"}, Dir: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	failing, _ := fakeEngine(t, "", 2)
	cfg.Engine.Path = failing
	a.Search(context.Background(), Request{Patterns: []string{"needle"}, Dir: t.TempDir()})

	out.Reset()
	if err := a.History(0, true); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"#2", "error", "EXECUTION_FAILED", "#1", "ok", "2 files", "--regexp=needle", "a.txt", "b.txt"} {
		if !strings.Contains(got, want) {
			t.Errorf("history output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "#2") > strings.Index(got, "#1") {
		t.Error("history should list newest first")
	}
}

func TestHistory_Empty(t *testing.T) {
	a, out := newTestApp(t, testConfig(t, "rg"))
	if err := a.History(5, false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "no recorded invocations\n" {
		t.Errorf("History() output = %q", out.String())
	}
}

func TestFind(t *testing.T) {
	for _, async := range []bool{false, true} {
		t.Run(fmt.Sprintf("async=%v", async), func(t *testing.T) {
			engine, argsFile := fakeEngine(t, "a.txt\nsub/b.txt", 0)
			a, out := newTestApp(t, testConfig(t, engine))

			found, err := a.Find(context.Background(), Request{Dir: t.TempDir(), Types: []string{"txt"}, Async: async})
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if found != 2 || out.String() != "a.txt\nsub/b.txt\n" {
				t.Errorf("Find() = %d, output %q", found, out.String())
			}
			args := recordedArgs(t, argsFile)
			if !slices.Contains(args, "--files") || !slices.Contains(args, "--type=txt") {
				t.Errorf("engine args = %q", args)
			}
		})
	}
}

func TestResolve_GitRoot(t *testing.T) {
	dir, _, err := workspace.CreateRepo(map[string]string{"sub/file.txt": "x\n"})
	if err != nil {
		t.Fatal(err)
	}
	defer workspace.Cleanup(dir)

	a, _ := newTestApp(t, testConfig(t, "rg"))
	inv, err := a.resolve(Request{Dir: filepath.Join(dir, "sub"), GitRoot: true})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(inv.dir)
	if got != want {
		t.Errorf("dir = %q, want %q", got, want)
	}

	if _, err := a.resolve(Request{Dir: t.TempDir(), GitRoot: true}); !errors.Is(err, workspace.ErrNotRepository) {
		t.Errorf("expected ErrNotRepository, got %v", err)
	}
}

func TestResolve_Sandbox(t *testing.T) {
	cfg := testConfig(t, "/usr/local/bin/rg")
	cfg.Sandbox.Enabled = true
	a, _ := newTestApp(t, cfg)
	dir := t.TempDir()

	inv, err := a.resolve(Request{Dir: dir})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if _, ok := inv.source.(*sandbox.Runner); !ok {
		t.Errorf("source = %T, want *sandbox.Runner", inv.source)
	}
	if inv.executable != "rg" {
		t.Errorf("executable = %q, want rg", inv.executable)
	}
	if !slices.Equal(inv.targets, []string{config.SandboxWorkdir}) {
		t.Errorf("targets = %q", inv.targets)
	}

	inv, err = a.resolve(Request{Dir: dir, Targets: []string{"src/main.go"}})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(inv.targets, []string{"/workspace/src/main.go"}) {
		t.Errorf("targets = %q", inv.targets)
	}

	if _, err := a.resolve(Request{Dir: dir, Targets: []string{"/etc/passwd"}}); err == nil {
		t.Error("targets outside the mounted directory should be rejected")
	}
}

func TestParseSemver(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"ripgrep 14.1.0", "14.1.0", false},
		{"ripgrep 13.0.0 (rev 7ec2fd51ba)", "13.0.0", false},
		{"v11.0.2", "11.0.2", false},
		{"ripgrep", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := parseSemver(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSemver() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v.String() != tt.want {
				t.Errorf("parseSemver() = %s, want %s", v, tt.want)
			}
		})
	}
}

func TestDoctor_MissingEngine(t *testing.T) {
	a, out := newTestApp(t, testConfig(t, filepath.Join(t.TempDir(), "no-such-rg")))

	checks, err := a.Doctor(context.Background(), DoctorOptions{})
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	if checks[0].Name != "engine" || checks[0].OK {
		t.Errorf("engine check = %+v", checks[0])
	}
	if !checks[1].Skipped {
		t.Errorf("self-test should be skipped, got %+v", checks[1])
	}
	if !strings.Contains(out.String(), "FAIL  engine") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDoctor_OldEngine(t *testing.T) {
	engine, _ := fakeEngine(t, "ripgrep 0.10.0", 0)
	a, _ := newTestApp(t, testConfig(t, engine))

	checks, err := a.Doctor(context.Background(), DoctorOptions{})
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	if checks[0].OK || !strings.Contains(checks[0].Detail, "does not satisfy") {
		t.Errorf("engine check = %+v", checks[0])
	}
}

func TestDoctor_Ripgrep(t *testing.T) {
	path, err := exec.LookPath("rg")
	if err != nil {
		t.Skip("rg not installed")
	}
	cfg := testConfig(t, path)
	cfg.History.Enabled = true
	a, _ := newTestApp(t, cfg)

	checks, err := a.Doctor(context.Background(), DoctorOptions{})
	if err != nil {
		t.Fatalf("Doctor() error = %v (%+v)", err, checks)
	}
	for _, c := range checks {
		switch c.Name {
		case "sandbox":
			if !c.Skipped {
				t.Errorf("sandbox should be skipped when disabled: %+v", c)
			}
		default:
			if !c.OK {
				t.Errorf("check %s failed: %s", c.Name, c.Detail)
			}
		}
	}
}
