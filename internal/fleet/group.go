package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/logger"
)

// Mode selects how a Group dispatches work across its connections.
type Mode int

const (
	// Serial processes one host fully before the next begins, in list order.
	Serial Mode = iota
	// Parallel processes hosts concurrently through a bounded worker pool.
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "serial"
}

// GroupOptions configures a Group at construction.
type GroupOptions struct {
	// Mode selects serial or parallel dispatch. Default Serial.
	Mode Mode

	// PoolSize caps simultaneous in-flight connections in parallel mode.
	// Zero means one worker per host. Each open connection costs a remote
	// session slot and a local socket, so large fleets want a cap.
	PoolSize int

	// SubmitWait bounds how long a parallel submission waits for a pool
	// slot. Zero blocks until one frees; work is never dropped.
	SubmitWait time.Duration

	// AbortOnFailure makes Execute return a GroupFailure when any host
	// failed. The failure is raised only after every host was attempted,
	// never mid-flight.
	AbortOnFailure bool

	// Pool overrides the worker pool implementation. Nil uses a
	// SemaphorePool sized per PoolSize.
	Pool WorkerPool

	// Dialer overrides how transports are opened. Nil uses SSHDialer.
	Dialer Dialer

	// Logger receives progress and debug output. Nil discards.
	Logger logger.Logger
}

// Group is an ordered collection of Connections bound to one execution mode.
// It owns its Connections: it creates them at construction and Close releases
// them. A Group is the coordinator the CLI and library callers drive.
type Group struct {
	conns []*Connection
	opts  GroupOptions
	log   logger.Logger
	exec  *Executor
}

// NewGroup resolves every host in specs through resolver and builds one
// unopened Connection per host. Resolution errors are fatal and surface here,
// before any connection attempt. Duplicate host strings are rejected since
// the ResultSet keys its entries by them.
func NewGroup(specs []HostSpec, resolver *Resolver, call *Overrides, opts GroupOptions) (*Group, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = SSHDialer{}
	}

	seen := make(map[string]bool, len(specs))
	conns := make([]*Connection, 0, len(specs))
	for _, spec := range specs {
		host := spec.String()
		if seen[host] {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Duplicate host '%s' in host list", host),
				"List each host once; results are keyed by host string.")
		}
		seen[host] = true
		cfg, err := resolver.Resolve(spec, call)
		if err != nil {
			return nil, err
		}
		conns = append(conns, NewConnection(spec, cfg, dialer, log))
	}

	return &Group{
		conns: conns,
		opts:  opts,
		log:   log,
		exec:  NewExecutor(log),
	}, nil
}

// FromConnections builds a Group around already-constructed Connections.
// The Group takes ownership; callers must not share the Connections with
// another Group, and each Connection must carry a distinct host string.
func FromConnections(opts GroupOptions, conns ...*Connection) *Group {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Group{
		conns: conns,
		opts:  opts,
		log:   log,
		exec:  NewExecutor(log),
	}
}

// Connections returns the group's connections in host-list order.
func (g *Group) Connections() []*Connection {
	out := make([]*Connection, len(g.conns))
	copy(out, g.conns)
	return out
}

// Close closes every connection. Idempotent; safe on never-opened groups.
func (g *Group) Close() error {
	var first error
	for _, conn := range g.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Execute runs task against every host and aggregates the per-host outcomes.
// A host's connection or command failure is captured in the ResultSet and the
// remaining hosts still run; Execute never aborts mid-flight.
//
// The returned error is non-nil in three cases: a GroupFailure when
// AbortOnFailure is set and any host failed, a GroupFailure when no host at
// all succeeded, or a PoolExhaustedTimeout when a parallel submission could
// not be scheduled. In every case all dispatched work has finished and the
// ResultSet holds one entry per attempted host.
func (g *Group) Execute(ctx context.Context, task Task) (*ResultSet, error) {
	rs := newResultSet()
	g.log.Debug("run %s: %q on %d hosts (%s)", rs.RunID, task.Name(), len(g.conns), g.opts.Mode)

	var fatal error
	if g.opts.Mode == Parallel {
		fatal = g.executeParallel(ctx, task, rs)
	} else {
		g.executeSerial(ctx, task, rs)
	}

	failed := len(rs.Failed())
	g.log.Debug("run %s: %d/%d hosts succeeded", rs.RunID, rs.Len()-failed, rs.Len())

	if fatal != nil {
		return rs, fatal
	}
	if failed > 0 && (g.opts.AbortOnFailure || failed == rs.Len()) {
		return rs, &GroupFailure{Results: rs}
	}
	return rs, nil
}

// executeSerial iterates hosts in list order, one at a time. Side effects
// happen strictly in that order, which matters for tasks with cross-host
// ordering dependencies.
func (g *Group) executeSerial(ctx context.Context, task Task, rs *ResultSet) {
	for _, conn := range g.conns {
		if ctx.Err() != nil {
			rs.record(conn.Spec.String(), nil, &CancelledFailure{Host: conn.Spec.String()})
			continue
		}
		out := g.exec.Run(ctx, conn, task)
		rs.record(out.Host, out.Res, out.Err)
	}
}

// executeParallel dispatches one executor invocation per host through the
// worker pool. No ordering is guaranteed, but every host is attempted exactly
// once and the ResultSet stays keyed and ordered by the original host list.
func (g *Group) executeParallel(ctx context.Context, task Task, rs *ResultSet) error {
	pool := g.opts.Pool
	if pool == nil {
		size := g.opts.PoolSize
		if size <= 0 || size > len(g.conns) {
			size = len(g.conns)
		}
		pool = NewSemaphorePool(size, g.opts.SubmitWait, g.log)
	}

	outcomes := make([]outcome, len(g.conns))
	var fatal error

	for i, conn := range g.conns {
		i, conn := i, conn
		host := conn.Spec.String()

		if fatal != nil || ctx.Err() != nil {
			// No new dispatch after cancellation or a scheduling failure;
			// hosts not yet started are recorded, not silently dropped.
			outcomes[i] = outcome{Host: host, Err: &CancelledFailure{Host: host}}
			continue
		}

		err := pool.Submit(ctx, func() {
			outcomes[i] = g.exec.Run(ctx, conn, task)
		})
		if err != nil {
			outcomes[i] = outcome{Host: host, Err: &CancelledFailure{Host: host}}
			if _, ok := err.(*PoolExhaustedTimeout); ok {
				// Fatal to this call, but in-flight workers finish first.
				fatal = err
			}
		}
	}

	pool.Wait()

	for _, out := range outcomes {
		rs.record(out.Host, out.Res, out.Err)
	}
	return fatal
}
