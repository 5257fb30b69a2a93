package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"
	"github.com/rs/zerolog/log"

	"github.com/computerscienceiscool/rgrun/pkg/config"
	"github.com/computerscienceiscool/rgrun/pkg/executor"
)

// ContainerConfig holds configuration for running the engine in a container
type ContainerConfig struct {
	Image       string
	RepoRoot    string // host directory mounted read-only at config.SandboxWorkdir
	MemoryLimit string
	CPULimit    float64
	Timeout     time.Duration // used when the invocation sets none
	MaxLineSize int
}

// Runner executes engine invocations inside a throwaway container. It
// satisfies the same line source contract as the local executor.
type Runner struct {
	cfg    ContainerConfig
	memory int64
}

// NewRunner creates a container runner. RepoRoot must be an absolute path.
func NewRunner(cfg ContainerConfig) (*Runner, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("container image cannot be empty")
	}
	if !filepath.IsAbs(cfg.RepoRoot) {
		return nil, fmt.Errorf("repository root must be absolute: %q", cfg.RepoRoot)
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = config.DefaultScanBufferSize
	}
	memory, err := parseMemoryLimit(cfg.MemoryLimit)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, memory: memory}, nil
}

// Lines runs spec in a container and yields its standard output line by
// line. spec.Dir is ignored; the engine runs in the mounted repository.
func (r *Runner) Lines(ctx context.Context, spec executor.CmdSpec) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		run, err := r.start(ctx, spec)
		if err != nil {
			yield("", err)
			return
		}
		defer run.close()

		for {
			line, ok, err := run.next()
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

// Stream is the non-blocking counterpart of Lines. Cancelling ctx removes
// the container.
func (r *Runner) Stream(ctx context.Context, spec executor.CmdSpec) (<-chan executor.Line, error) {
	run, err := r.start(ctx, spec)
	if err != nil {
		return nil, err
	}

	ch := make(chan executor.Line)
	go func() {
		defer close(ch)
		defer run.close()

		for {
			line, ok, err := run.next()
			if !ok {
				if err != nil {
					select {
					case ch <- executor.Line{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case ch <- executor.Line{Text: line}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

type containerRun struct {
	spec    executor.CmdSpec
	cli     *client.Client
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logs    io.ReadCloser
	pipe    *io.PipeReader
	scanner *bufio.Scanner
	stderr  *lockedBuffer
	demuxed chan error
	done    bool
}

func (r *Runner) start(ctx context.Context, spec executor.CmdSpec) (*containerRun, error) {
	if spec.Path == "" {
		return nil, &executor.StartError{Path: spec.Path, Err: fmt.Errorf("empty executable path")}
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Configure container
	containerConfig := &container.Config{
		Image:      r.cfg.Image,
		Entrypoint: strslice.StrSlice{spec.Path},
		Cmd:        strslice.StrSlice(spec.Args),
		Env:        spec.Env,
		WorkingDir: config.SandboxWorkdir,
		User:       "1000:1000",
	}

	// Configure host (mounts, resources, security)
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   r.memory,
			NanoCPUs: int64(r.cfg.CPULimit * 1e9),
		},
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   r.cfg.RepoRoot,
				Target:   config.SandboxWorkdir,
				ReadOnly: true,
			},
		},
		CapDrop:        strslice.StrSlice{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: true,
	}

	run := &containerRun{spec: spec, cli: cli, ctx: runCtx, cancel: cancel, stderr: &lockedBuffer{limit: 64 * 1024}}

	resp, err := cli.ContainerCreate(runCtx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		run.release()
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	run.id = resp.ID

	log.Debug().Str("container", shortID(run.id)).Str("image", r.cfg.Image).Str("executable", spec.Path).Strs("args", spec.Args).Msg("starting container")

	if err := cli.ContainerStart(runCtx, run.id, types.ContainerStartOptions{}); err != nil {
		run.release()
		if isMissingExecutable(err) {
			return nil, &executor.StartError{Path: spec.Path, Err: err}
		}
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	logs, err := cli.ContainerLogs(runCtx, run.id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		run.release()
		return nil, fmt.Errorf("failed to get container logs: %w", err)
	}
	run.logs = logs

	pr, pw := io.Pipe()
	run.demuxed = make(chan error, 1)
	go func() {
		err := demuxLogs(logs, pw, run.stderr)
		pw.CloseWithError(err)
		run.demuxed <- err
	}()

	run.pipe = pr
	run.scanner = executor.NewLineScanner(pr, r.cfg.MaxLineSize)
	return run, nil
}

// next returns the next stdout line. Once output is exhausted it waits for
// the container and reports ok=false with the run's outcome.
func (c *containerRun) next() (string, bool, error) {
	if c.done {
		return "", false, nil
	}
	if c.scanner.Scan() {
		return c.scanner.Text(), true, nil
	}
	c.done = true
	defer c.release()

	if err := c.scanner.Err(); err != nil {
		return "", false, fmt.Errorf("failed to read output of %s: %w", c.spec.Path, err)
	}
	<-c.demuxed

	code, err := c.wait()
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return "", false, fmt.Errorf("%s: %w", c.spec.Path, ctxErr)
	}
	if err != nil {
		return "", false, err
	}

	log.Debug().Str("container", shortID(c.id)).Int("exit_code", code).Msg("container exited")
	if code == 0 || (c.spec.NoMatchExitCode > 0 && code == c.spec.NoMatchExitCode) {
		return "", false, nil
	}
	return "", false, &executor.ExitError{
		Path:     c.spec.Path,
		Args:     c.spec.Args,
		ExitCode: code,
		Stderr:   c.stderr.String(),
	}
}

func (c *containerRun) wait() (int, error) {
	statusCh, errCh := c.cli.ContainerWait(c.ctx, c.id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("error waiting for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return 0, fmt.Errorf("error waiting for container: %s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	}
}

// close abandons a run that was not read to the end.
func (c *containerRun) close() {
	if c.done {
		return
	}
	c.done = true
	c.release()
	log.Debug().Str("container", shortID(c.id)).Msg("container abandoned before completion")
}

// release removes the container and frees the client.
func (c *containerRun) release() {
	c.cancel()
	if c.logs != nil {
		c.logs.Close()
	}
	if c.pipe != nil {
		// Unblocks the demultiplexer if nobody is reading anymore.
		c.pipe.CloseWithError(io.ErrClosedPipe)
	}
	if c.id != "" {
		// The run context may already be cancelled.
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.cli.ContainerRemove(rmCtx, c.id, types.ContainerRemoveOptions{Force: true}); err != nil {
			log.Debug().Err(err).Str("container", shortID(c.id)).Msg("failed to remove container")
		}
		c.id = ""
	}
	c.cli.Close()
}

func isMissingExecutable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") || strings.Contains(msg, "no such file or directory")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// parseMemoryLimit converts a memory limit such as "512m" to bytes. An
// empty limit means unlimited.
func parseMemoryLimit(limit string) (int64, error) {
	if limit == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(limit)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", limit, err)
	}
	return n, nil
}

// demuxLogs separates stdout and stderr from the multiplexed Docker log
// stream.
func demuxLogs(reader io.Reader, stdout, stderr io.Writer) error {
	_, err := stdcopy.StdCopy(stdout, stderr, reader)
	return err
}

// lockedBuffer collects stderr up to limit bytes.
type lockedBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		b.buf = append(b.buf, p[:min(len(p), room)]...)
	}
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
