package sshutil

import "io"

// Transport is the command-execution contract a dialed Client provides.
// Consumers that only need captured output depend on a subset of it, which
// keeps them testable without opening real SSH connections.
type Transport interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	// Returns the exit code and any error.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// Addr returns the resolved host:port address this transport is bound to.
	Addr() string
}

var _ Transport = (*Client)(nil)
