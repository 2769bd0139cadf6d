package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/logger"
)

// Transport is the narrow contract the engine consumes from the SSH layer:
// run a command with captured output, close. Fakes satisfy it in tests.
type Transport interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
	Close() error
	Addr() string
}

// Dialer opens a Transport for a resolved ConnectionConfig.
type Dialer interface {
	Dial(cfg *ConnectionConfig) (Transport, error)
}

type connState int

const (
	stateUnopened connState = iota
	stateOpen
	stateClosed
)

// Connection pairs one HostSpec with its resolved ConnectionConfig and an
// underlying transport that is absent until first use. A Connection is owned
// by the Group that created it and moves Unopened → Open → Closed; Closed is
// terminal, callers wanting a fresh session construct a new Connection.
type Connection struct {
	Spec   HostSpec
	Config *ConnectionConfig

	dialer Dialer
	log    logger.Logger

	mu        sync.Mutex
	state     connState
	transport Transport
}

// NewConnection creates an unopened Connection. The dialer is invoked lazily
// on first use.
func NewConnection(spec HostSpec, cfg *ConnectionConfig, dialer Dialer, log logger.Logger) *Connection {
	if log == nil {
		log = logger.Noop()
	}
	return &Connection{
		Spec:   spec,
		Config: cfg,
		dialer: dialer,
		log:    log,
	}
}

// Identity returns the user@host:port string identifying this connection in
// aggregate results.
func (c *Connection) Identity() string {
	return c.Config.Identity()
}

// IsOpen reports whether the transport is currently established.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// Open establishes the transport. Idempotent while open; calling Open on a
// closed Connection is an error since closed is a terminal state.
func (c *Connection) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *Connection) openLocked() error {
	switch c.state {
	case stateOpen:
		return nil
	case stateClosed:
		return errors.New(errors.ErrSSH,
			fmt.Sprintf("Connection to %s is closed", c.Identity()),
			"Create a new connection; closed connections can't be reopened.")
	}

	c.log.Debug("opening connection to %s", c.Identity())
	transport, err := c.dialer.Dial(c.Config)
	if err != nil {
		return &ConnectFailure{Host: c.Spec.String(), Cause: err}
	}

	c.transport = transport
	c.state = stateOpen
	c.log.Debug("connection to %s established (%s)", c.Identity(), transport.Addr())
	return nil
}

// Close releases the transport. Idempotent, and a no-op on a never-opened
// Connection. Either way the Connection ends up Closed.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateOpen {
		c.state = stateClosed
		return nil
	}

	c.state = stateClosed
	transport := c.transport
	c.transport = nil
	c.log.Debug("closing connection to %s", c.Identity())
	return transport.Close()
}

// RunCommand executes one command on this connection, opening the transport
// first if it isn't yet. A non-zero remote exit is returned as a Result, not
// an error; only transport-level problems produce errors.
func (c *Connection) RunCommand(cmd string) (*Result, error) {
	c.mu.Lock()
	if err := c.openLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	transport := c.transport
	c.mu.Unlock()

	full := buildEnvPrefix(c.Config.Env) + cmd

	start := time.Now()
	stdout, stderr, exitCode, err := transport.Exec(full)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	return &Result{
		Host:       c.Identity(),
		Command:    cmd,
		ExitStatus: exitCode,
		Stdout:     stdout,
		Stderr:     stderr,
		Elapsed:    elapsed,
	}, nil
}

// buildEnvPrefix creates the environment variable prefix for a command.
// Keys are sorted so the generated command line is deterministic.
func buildEnvPrefix(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	prefix := ""
	for _, k := range keys {
		prefix += fmt.Sprintf("export %s=%q; ", k, env[k])
	}
	return prefix
}
