package fleet

import (
	"context"

	"github.com/drockwell/flotilla/internal/logger"
)

// outcome is the captured result of running one task on one connection.
// Either Res or Err may be set; a non-zero exit sets both (the Result plus a
// CommandFailure).
type outcome struct {
	Host string
	Res  *Result
	Err  error
}

// Executor runs a single task against a single Connection and converts every
// failure into a tagged outcome instead of propagating. This isolation is
// what lets the Group continue past single-host failures.
type Executor struct {
	log logger.Logger
}

// NewExecutor returns an Executor logging through log.
func NewExecutor(log logger.Logger) *Executor {
	if log == nil {
		log = logger.Noop()
	}
	return &Executor{log: log}
}

// Run executes task on conn and captures the outcome. Connection failures,
// command failures, and cancellation are all recorded, never raised.
func (e *Executor) Run(ctx context.Context, conn *Connection, task Task) outcome {
	host := conn.Spec.String()

	if err := ctx.Err(); err != nil {
		e.log.Debug("skipping %s: %v", host, err)
		return outcome{Host: host, Err: &CancelledFailure{Host: host}}
	}

	res, err := task.Run(ctx, conn)
	switch {
	case err == nil && res != nil && !res.OK():
		// Default policy: a non-zero exit is recorded as a failure in the
		// aggregate but keeps its Result available for inspection.
		e.log.Debug("%s: %q exited %d", host, task.Name(), res.ExitStatus)
		return outcome{Host: host, Res: res, Err: &CommandFailure{
			Host:       host,
			Command:    task.Name(),
			ExitStatus: res.ExitStatus,
		}}
	case err != nil:
		if ctx.Err() != nil && res == nil {
			// Cancelled mid-dispatch; the host never completed.
			return outcome{Host: host, Err: &CancelledFailure{Host: host}}
		}
		e.log.Debug("%s: %q failed: %v", host, task.Name(), err)
		return outcome{Host: host, Res: res, Err: err}
	case res == nil:
		// A func task may legitimately return nothing at all. That still
		// counts as success for the host.
		e.log.Debug("%s: %q ok (no result)", host, task.Name())
		return outcome{Host: host}
	default:
		e.log.Debug("%s: %q ok in %s", host, task.Name(), res.Elapsed)
		return outcome{Host: host, Res: res}
	}
}
