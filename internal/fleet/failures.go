package fleet

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ConnectFailure records a transport or auth failure for one host. It is
// captured per-host and never aborts the other hosts.
type ConnectFailure struct {
	Host  string
	Cause error
}

func (e *ConnectFailure) Error() string {
	return fmt.Sprintf("connect to %s failed: %v", e.Host, e.Cause)
}

func (e *ConnectFailure) Unwrap() error {
	return e.Cause
}

// CommandFailure records a non-zero remote exit status for one host.
type CommandFailure struct {
	Host       string
	Command    string
	ExitStatus int
}

func (e *CommandFailure) Error() string {
	return fmt.Sprintf("command %q on %s exited with status %d", e.Command, e.Host, e.ExitStatus)
}

// CancelledFailure records a host that was not reached before the execution
// was cancelled.
type CancelledFailure struct {
	Host string
}

func (e *CancelledFailure) Error() string {
	return fmt.Sprintf("execution cancelled before %s was attempted", e.Host)
}

// PoolExhaustedTimeout is returned when a parallel submission could not be
// scheduled within the configured wait bound. It is fatal to the triggering
// Execute call; already-dispatched workers still run to completion first.
type PoolExhaustedTimeout struct {
	Wait time.Duration
}

func (e *PoolExhaustedTimeout) Error() string {
	return fmt.Sprintf("worker pool exhausted: no slot freed within %s", e.Wait)
}

// GroupFailure is the only error a Group ever raises for per-host problems.
// It carries the full ResultSet so callers can inspect exactly which hosts
// failed, and it is raised only after every host has been attempted.
type GroupFailure struct {
	Results *ResultSet
}

func (e *GroupFailure) Error() string {
	agg := &multierror.Error{
		ErrorFormat: func(errs []error) string {
			msg := fmt.Sprintf("%d of %d hosts failed:", len(errs), e.Results.Len())
			for _, err := range errs {
				msg += fmt.Sprintf("\n  * %v", err)
			}
			return msg
		},
	}
	for _, host := range e.Results.Hosts() {
		if err := e.Results.Failure(host); err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	return agg.Error()
}

// Unwrap exposes the per-host failures to errors.Is/errors.As.
func (e *GroupFailure) Unwrap() []error {
	var errs []error
	for _, host := range e.Results.Hosts() {
		if err := e.Results.Failure(host); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
