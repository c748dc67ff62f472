package transport

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "transport")

// maxFrameSize bounds a single newline-delimited frame read from a child
// process; tool results can be large.
const maxFrameSize = 16 * 1024 * 1024

// Stdio runs an MCP server as a child process and speaks
// newline-delimited JSON-RPC over its stdin/stdout. Stderr is logged.
type Stdio struct {
	command string
	args    []string
	env     []string
	dir     string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	messageHandler func(ctx context.Context, frame []byte)
	errorHandler   func(err error)
	closeHandler   func()

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
}

// NewStdio creates a stdio transport for the given command line.
// env entries are appended to the child's inherited environment.
func NewStdio(command string, args []string, env []string, dir string) *Stdio {
	return &Stdio{
		command: command,
		args:    args,
		env:     env,
		dir:     dir,
	}
}

// SetMessageHandler implements Transport.
func (t *Stdio) SetMessageHandler(handler func(ctx context.Context, frame []byte)) {
	t.messageHandler = handler
}

// SetErrorHandler implements Transport.
func (t *Stdio) SetErrorHandler(handler func(err error)) {
	t.errorHandler = handler
}

// SetCloseHandler implements Transport.
func (t *Stdio) SetCloseHandler(handler func()) {
	t.closeHandler = handler
}

// Start implements Transport: spawns the child and begins reading stdout.
func (t *Stdio) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("stdio transport already started")
	}

	cmd := exec.Command(t.command, t.args...)
	cmd.Dir = t.dir
	if len(t.env) > 0 {
		cmd.Env = append(cmd.Environ(), t.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %q", t.command)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.started = true

	go t.readLoop(ctx, stdout)
	go t.drainStderr(ctx, stderr)

	return nil
}

func (t *Stdio) readLoop(ctx context.Context, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		if t.messageHandler != nil {
			t.messageHandler(ctx, frame)
		}
	}

	if err := scanner.Err(); err != nil && t.errorHandler != nil {
		t.errorHandler(errors.Wrap(err, "stdout read error"))
	}
	if t.closeHandler != nil {
		t.closeHandler()
	}
}

func (t *Stdio) drainStderr(ctx context.Context, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		logger.ContextKV(ctx, xlog.DEBUG,
			"command", t.command,
			"stderr", scanner.Text(),
		)
	}
}

// Send implements Transport: writes one newline-terminated frame.
func (t *Stdio) Send(_ context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return errors.New("stdio transport not started")
	}
	if _, err := t.stdin.Write(append(frame, '\n')); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// Close implements Transport: closes stdin so the child can exit
// cleanly, then reaps the process.
func (t *Stdio) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.started {
			return
		}
		if cerr := t.stdin.Close(); cerr != nil {
			err = errors.Wrap(cerr, "failed to close stdin")
		}
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
			_ = t.cmd.Wait()
		}
	})
	return err
}

var _ Transport = (*Stdio)(nil)
