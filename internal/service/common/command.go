//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/rwb-release/internal/logger"
)

const (
	// stderrTailLines is how many trailing stderr lines a CommandError keeps.
	stderrTailLines = 20
	// genericExitCode is reported when a failure carries no process exit code.
	genericExitCode = 1
)

// ErrToolNotFound is returned when an external tool is not on PATH.
var ErrToolNotFound = errors.New("external tool not found")

// Command describes one external tool invocation.
type Command struct {
	// Name is the executable name or path.
	Name string
	// Args are passed verbatim.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Timeout overrides the runner timeout when positive.
	Timeout time.Duration
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external tools. Implementations block until the tool exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandError is returned when a tool cannot be started or exits unsuccessfully.
type CommandError struct {
	// Command is the rendered command line.
	Command string
	// ExitCode is the process exit code, or -1 when the process did not exit normally.
	ExitCode int
	// Stderr holds the trailing lines of the tool's error output.
	Stderr string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *CommandError) Error() string {
	var b strings.Builder

	b.WriteString(e.Command)

	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	if e.Stderr != "" {
		b.WriteString("\n")
		b.WriteString(e.Stderr)
	}

	return b.String()
}

// Unwrap returns the underlying cause.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to a process exit status: 0 for nil, the failing tool's
// exit code when known, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}

	return genericExitCode
}

// ExecRunner runs tools as child processes and forwards their output to the logger.
type ExecRunner struct {
	// env is merged over the process environment for every command.
	env map[string]string
	// timeout bounds each command when positive.
	timeout time.Duration
	// lookPath resolves executables; replaced in tests.
	lookPath func(string) (string, error)
}

// RunnerOption configures an ExecRunner.
type RunnerOption func(*ExecRunner)

// WithEnv sets extra environment variables for every command.
func WithEnv(env map[string]string) RunnerOption {
	return func(r *ExecRunner) {
		r.env = env
	}
}

// WithTimeout bounds every command that does not set its own timeout.
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewExecRunner returns a runner that executes real processes.
func NewExecRunner(opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		lookPath: exec.LookPath,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run starts the tool, waits for it and classifies the outcome.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	path, err := r.lookPath(c.Name)
	if err != nil {
		return &CommandError{
			Command:  c.String(),
			ExitCode: -1,
			Err:      fmt.Errorf("%w: %s", ErrToolNotFound, c.Name),
		}
	}

	timeout := r.timeout
	if c.Timeout > 0 {
		timeout = c.Timeout
	}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx = logger.WithFields(ctx, map[string]any{"tool": c.Name, "dir": c.Dir})

	stdout := newLineLogger(ctx, "stdout", 0)
	stderr := newLineLogger(ctx, "stderr", stderrTailLines)

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = Environ(r.env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.InfoKV(ctx, "Running external tool", "command", c.String())

	started := time.Now()
	err = cmd.Run()

	logger.Debugf(ctx, "Tool exited after %s", time.Since(started).Round(time.Millisecond))

	stdout.Flush()
	stderr.Flush()

	if err == nil {
		return nil
	}

	cmdErr := &CommandError{
		Command:  c.String(),
		ExitCode: -1,
		Stderr:   stderr.Tail(),
		Err:      err,
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.Err = ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}

	return cmdErr
}

// lineLogger is an io.Writer that logs each complete line written to it.
// exec.Cmd writes each stream from a single goroutine, so no locking is needed.
type lineLogger struct {
	ctx     context.Context //nolint:containedctx // Lines are logged with the command's context.
	stream  string
	pending bytes.Buffer
	keep    int
	tail    []string
}

func newLineLogger(ctx context.Context, stream string, keep int) *lineLogger {
	return &lineLogger{
		ctx:    ctx,
		stream: stream,
		keep:   keep,
	}
}

// Write implements io.Writer.
func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending.Write(p)

	for {
		line, err := l.pending.ReadString('\n')
		if err != nil {
			// Incomplete line: keep it for the next write.
			l.pending.Reset()
			l.pending.WriteString(line)

			break
		}

		l.emit(line)
	}

	return len(p), nil
}

// Flush logs a trailing line without a newline.
func (l *lineLogger) Flush() {
	if l.pending.Len() > 0 {
		l.emit(l.pending.String())
		l.pending.Reset()
	}
}

// Tail returns the kept trailing lines.
func (l *lineLogger) Tail() string {
	return strings.Join(l.tail, "\n")
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}

	logger.InfoKV(l.ctx, line, "stream", l.stream)

	if l.keep <= 0 {
		return
	}

	l.tail = append(l.tail, line)
	if len(l.tail) > l.keep {
		l.tail = l.tail[len(l.tail)-l.keep:]
	}
}
