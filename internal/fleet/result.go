package fleet

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of one task on one host. Immutable once produced.
type Result struct {
	// Host is the identity of the connection that ran the command,
	// formatted user@host:port.
	Host string

	// Command is the remote command line as executed.
	Command string

	// ExitStatus is the remote exit code. 0 means success.
	ExitStatus int

	// Stdout and Stderr hold the captured output streams.
	Stdout []byte
	Stderr []byte

	// Elapsed is the wall-clock duration of the command.
	Elapsed time.Duration
}

// OK reports whether the command exited zero.
func (r *Result) OK() bool {
	return r.ExitStatus == 0
}

// ResultSet aggregates per-host outcomes for one Group execution. It always
// holds exactly one entry per host, keyed by the host string as given in the
// original list, and is never mutated after Execute returns.
type ResultSet struct {
	// RunID identifies the execution that produced this set.
	RunID uuid.UUID

	order    []string
	results  map[string]*Result
	failures map[string]error
}

func newResultSet() *ResultSet {
	return &ResultSet{
		RunID:    uuid.New(),
		results:  make(map[string]*Result),
		failures: make(map[string]error),
	}
}

// record stores one host outcome. A host may carry both a Result and a
// failure: a non-zero exit keeps its Result alongside the CommandFailure.
// Both nil records a success that produced no Result, which func tasks are
// allowed to do.
func (rs *ResultSet) record(host string, res *Result, err error) {
	rs.order = append(rs.order, host)
	if res != nil {
		rs.results[host] = res
	}
	if err != nil {
		rs.failures[host] = err
	}
}

// Hosts returns the hosts in original list order.
func (rs *ResultSet) Hosts() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Len returns the number of hosts attempted.
func (rs *ResultSet) Len() int {
	return len(rs.order)
}

// Result returns the Result for host, or nil when the host never produced
// one (connect failure, cancellation).
func (rs *ResultSet) Result(host string) *Result {
	return rs.results[host]
}

// Failure returns the captured failure for host, or nil when it succeeded.
func (rs *ResultSet) Failure(host string) error {
	return rs.failures[host]
}

// Succeeded returns the hosts that completed without a failure, keyed by
// host. The mapped Result is nil for hosts whose task succeeded without
// producing one.
func (rs *ResultSet) Succeeded() map[string]*Result {
	out := make(map[string]*Result)
	for _, host := range rs.order {
		if rs.failures[host] == nil {
			out[host] = rs.results[host]
		}
	}
	return out
}

// Failed returns the hosts that failed, with their captured failures, keyed
// by host.
func (rs *ResultSet) Failed() map[string]error {
	out := make(map[string]error)
	for host, err := range rs.failures {
		out[host] = err
	}
	return out
}

// AllSucceeded reports whether every host ran the task to a zero exit.
func (rs *ResultSet) AllSucceeded() bool {
	if len(rs.order) == 0 {
		return false
	}
	return len(rs.failures) == 0
}
