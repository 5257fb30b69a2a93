//go:build !windows

package ripgrep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

// Helper writing an engine that prints fakeJSON, records its pid, then
// lingers instead of exiting
func lingeringEngine(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")
	script := "#!/bin/sh\necho $$ > \"" + pidFile + "\"\ncat <<'RGRUN_EOF'\n" + fakeJSON + "\nRGRUN_EOF\nexec sleep 30\n"

	path := filepath.Join(dir, "rg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path, pidFile
}

// Helper waiting until the recorded process no longer exists
func waitGone(t *testing.T, pidFile string) {
	t.Helper()
	b, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		err := syscall.Kill(pid, 0)
		if errors.Is(err, syscall.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine %d still running after the caller stopped (kill err: %v)", pid, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSearch_RunEarlyBreakStopsEngine(t *testing.T) {
	engine, pidFile := lingeringEngine(t)
	s := NewSearch().SetExecutable(engine).AddPattern("needle")

	start := time.Now()
	for res, err := range s.Run(context.Background()) {
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Path != "a.txt" {
			t.Fatalf("first result = %q", res.Path)
		}
		break
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("breaking out took %v", elapsed)
	}

	waitGone(t, pidFile)
}

func TestSearch_StreamCancelStopsEngine(t *testing.T) {
	engine, pidFile := lingeringEngine(t)
	s := NewSearch().SetExecutable(engine).AddPattern("needle")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, err := s.Stream(ctx)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	first := <-results
	if first.Err != nil || first.Result == nil || first.Result.Path != "a.txt" {
		t.Fatalf("first element = %+v", first)
	}
	cancel()

	timeout := time.After(10 * time.Second)
	for open := true; open; {
		select {
		case _, open = <-results:
		case <-timeout:
			t.Fatal("stream did not close after cancellation")
		}
	}

	waitGone(t, pidFile)
}

func TestFind_RunEarlyBreakStopsEngine(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")
	script := "#!/bin/sh\necho $$ > \"" + pidFile + "\"\necho a.txt\necho b.txt\nexec sleep 30\n"
	engine := filepath.Join(dir, "rg")
	if err := os.WriteFile(engine, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	for path, err := range NewFind().SetExecutable(engine).Run(context.Background()) {
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if path != "a.txt" {
			t.Fatalf("first path = %q", path)
		}
		break
	}

	waitGone(t, pidFile)
}
