package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxLineSize bounds a single output line.
	DefaultMaxLineSize = 10 * 1024 * 1024
	// DefaultWaitDelay bounds how long Wait blocks on pipes still held by
	// grandchildren after the process itself has exited or been killed.
	DefaultWaitDelay = 2 * time.Second

	maxStderrSize  = 64 * 1024
	initialBufSize = 64 * 1024
)

// NewLineScanner returns a scanner over r whose tokens are limited to
// maxLineSize bytes. Longer lines fail with bufio.ErrTooLong.
func NewLineScanner(r io.Reader, maxLineSize int) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// The scanner accepts tokens up to the larger of max and cap(buf).
	scanner.Buffer(make([]byte, 0, min(initialBufSize, maxLineSize)), maxLineSize)
	return scanner
}

// CmdSpec describes one child process invocation.
type CmdSpec struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
	// Timeout of zero means no deadline beyond the caller's context.
	Timeout time.Duration
	// NoMatchExitCode is the exit status the engine uses for "ran, found
	// nothing". It ends the stream normally. Values <= 0 disable it.
	NoMatchExitCode int
}

// Line is one element of a non-blocking stream. The final element of a
// failed run carries Err and no Text.
type Line struct {
	Text string
	Err  error
}

// Executor runs child processes and exposes their standard output line by
// line.
type Executor struct {
	maxLineSize int
	waitDelay   time.Duration
}

// NewExecutor creates an executor. A maxLineSize <= 0 selects
// DefaultMaxLineSize.
func NewExecutor(maxLineSize int) *Executor {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return &Executor{maxLineSize: maxLineSize, waitDelay: DefaultWaitDelay}
}

// Lines runs spec and returns its standard output as a lazy, single-pass
// sequence. The process starts when iteration starts. Stopping the
// iteration early kills and reaps the process.
func (e *Executor) Lines(ctx context.Context, spec CmdSpec) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		p, err := e.start(ctx, spec)
		if err != nil {
			yield("", err)
			return
		}
		defer p.close()

		for {
			line, ok, err := p.next()
			if !ok {
				if err != nil {
					yield("", err)
				}
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Stream runs spec and delivers its standard output on a channel without
// blocking the caller. Start failures are returned directly. The channel is
// closed after the last line, or after a terminal element carrying Err.
// Cancelling ctx abandons the stream and reaps the process.
func (e *Executor) Stream(ctx context.Context, spec CmdSpec) (<-chan Line, error) {
	p, err := e.start(ctx, spec)
	if err != nil {
		return nil, err
	}

	ch := make(chan Line)
	go func() {
		defer close(ch)
		defer p.close()

		for {
			line, ok, err := p.next()
			if !ok {
				if err != nil {
					select {
					case ch <- Line{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case ch <- Line{Text: line}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

type process struct {
	spec    CmdSpec
	ctx     context.Context
	cancel  context.CancelFunc
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  *cappedBuffer
	waited  bool
}

func (e *Executor) start(ctx context.Context, spec CmdSpec) (*process, error) {
	if spec.Path == "" {
		return nil, &StartError{Path: spec.Path, Err: errors.New("empty executable path")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.WaitDelay = e.waitDelay

	stderr := &cappedBuffer{limit: maxStderrSize}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	log.Debug().Str("executable", spec.Path).Strs("args", spec.Args).Str("dir", spec.Dir).Msg("starting process")

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &StartError{Path: spec.Path, Err: err}
	}

	scanner := NewLineScanner(stdout, e.maxLineSize)

	return &process{
		spec:    spec,
		ctx:     runCtx,
		cancel:  cancel,
		cmd:     cmd,
		scanner: scanner,
		stderr:  stderr,
	}, nil
}

// next returns the next output line. When output is exhausted it reaps the
// process and reports ok=false together with the run's outcome.
func (p *process) next() (string, bool, error) {
	if p.waited {
		return "", false, nil
	}
	if p.scanner.Scan() {
		return p.scanner.Text(), true, nil
	}

	scanErr := p.scanner.Err()
	if scanErr != nil {
		// The reader gave up; make sure the writer cannot block Wait.
		p.cancel()
	}
	waitErr := p.wait()
	ctxErr := p.ctx.Err()
	p.cancel()

	if scanErr != nil {
		return "", false, fmt.Errorf("failed to read output of %s: %w", p.spec.Path, scanErr)
	}
	if ctxErr != nil {
		return "", false, fmt.Errorf("%s: %w", p.spec.Path, ctxErr)
	}
	return "", false, p.classify(waitErr)
}

func (p *process) classify(waitErr error) error {
	if waitErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		log.Debug().Str("executable", p.spec.Path).Int("exit_code", code).Msg("process exited")
		if p.spec.NoMatchExitCode > 0 && code == p.spec.NoMatchExitCode {
			return nil
		}
		return &ExitError{
			Path:     p.spec.Path,
			Args:     p.spec.Args,
			ExitCode: code,
			Stderr:   p.stderr.String(),
		}
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// Exited cleanly but a descendant kept a pipe open.
		return nil
	}
	return fmt.Errorf("failed to wait for %s: %w", p.spec.Path, waitErr)
}

func (p *process) wait() error {
	if p.waited {
		return nil
	}
	p.waited = true
	return p.cmd.Wait()
}

// close kills the process if it is still running and reaps it. It is safe
// to call after the output has been fully consumed.
func (p *process) close() {
	if p.waited {
		return
	}
	p.cancel()
	_ = p.wait()
	log.Debug().Str("executable", p.spec.Path).Msg("process abandoned before completion")
}

type cappedBuffer struct {
	buf   []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return string(b.buf)
}
