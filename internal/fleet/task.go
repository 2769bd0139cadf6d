package fleet

import (
	"context"
	"strings"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/google/shlex"
)

// Task is one unit of work run against a Connection. Tasks hold no per-host
// state; the same Task value is handed to every host in a Group.
type Task interface {
	// Name identifies the task in logs and summaries.
	Name() string

	// Run executes the task on conn. A non-zero remote exit is normally
	// returned inside the Result; implementations return an error only for
	// failures the caller should treat as exceptional.
	Run(ctx context.Context, conn *Connection) (*Result, error)
}

// ShellTask runs a shell command string on the remote host.
type ShellTask struct {
	// Command is the shell command line to execute remotely.
	Command string

	// Env is exported before the command, on top of the connection's env.
	Env map[string]string

	// FailOnError turns a non-zero exit into a CommandFailure error instead
	// of a plain Result. Off by default; the Group decides what a non-zero
	// exit means.
	FailOnError bool
}

// Shell builds a ShellTask after checking the command line is parseable
// (balanced quotes, non-empty).
func Shell(command string) (*ShellTask, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return nil, errors.New(errors.ErrExec,
			"Empty command",
			"Pass a shell command to run, e.g. 'uptime'.")
	}
	if _, err := shlex.Split(trimmed); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't parse command: "+trimmed,
			"Check for unbalanced quotes.")
	}
	return &ShellTask{Command: trimmed}, nil
}

// Name implements Task.
func (t *ShellTask) Name() string {
	return t.Command
}

// Run implements Task.
func (t *ShellTask) Run(ctx context.Context, conn *Connection) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := buildEnvPrefix(t.Env) + t.Command
	res, err := conn.RunCommand(cmd)
	if err != nil {
		return nil, err
	}
	// Report the bare command, not the env preamble.
	res.Command = t.Command

	if t.FailOnError && !res.OK() {
		return res, &CommandFailure{
			Host:       conn.Spec.String(),
			Command:    t.Command,
			ExitStatus: res.ExitStatus,
		}
	}
	return res, nil
}

// FuncTask wraps an arbitrary callable as a Task, for callers driving the
// Group from library code.
type FuncTask struct {
	// TaskName is the identifier shown in logs and summaries.
	TaskName string

	// Fn receives the connection for one host.
	Fn func(ctx context.Context, conn *Connection) (*Result, error)
}

// Name implements Task.
func (t *FuncTask) Name() string {
	if t.TaskName != "" {
		return t.TaskName
	}
	return "func"
}

// Run implements Task.
func (t *FuncTask) Run(ctx context.Context, conn *Connection) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Fn(ctx, conn)
}
