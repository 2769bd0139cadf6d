// Package sshutil wraps golang.org/x/crypto/ssh with the auth plumbing an
// operator expects from the openssh client: agent keys, identity files,
// known_hosts verification, and one-hop gateway connections.
package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/drockwell/flotilla/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Params holds the fully resolved parameters for one SSH connection.
// Resolution (defaults, ssh_config entries, overrides) happens upstream;
// this package only turns a Params into a live transport.
type Params struct {
	Host string
	Port int
	User string

	// Auth methods, tried in order: agent (when UseAgent), identity files,
	// then password if set.
	IdentityFiles []string
	Password      string
	UseAgent      bool

	// Host key policy. When StrictHostKey is false verification is skipped.
	StrictHostKey  bool
	KnownHostsFile string

	Timeout time.Duration

	// Gateway, when non-nil, is dialed first and the target connection is
	// tunneled through it as a direct-tcpip channel.
	Gateway *Params
}

// Address returns the host:port string for dialing.
func (p *Params) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Client wraps an SSH connection with the metadata callers report on.
type Client struct {
	*ssh.Client
	address string
	gateway *Client // held open for the lifetime of this client

	// encryptedKeys collects identity files that exist but need a passphrase,
	// surfaced in auth failure suggestions.
	encryptedKeys []string
}

// Dial establishes an SSH connection described by params, including the
// gateway hop when one is configured.
func Dial(params *Params) (*Client, error) {
	c := &Client{address: params.Address()}

	config, err := c.clientConfig(params)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	if params.Gateway != nil {
		gw, err := Dial(params.Gateway)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Couldn't open gateway '%s' for '%s'", params.Gateway.Host, params.Host),
				"Check the gateway host is reachable: ssh "+params.Gateway.Host)
		}
		conn, err = gw.Client.Dial("tcp", c.address)
		if err != nil {
			gw.Close()
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Gateway '%s' couldn't reach '%s'", params.Gateway.Host, c.address),
				"Check the target is reachable from the gateway.")
		}
		c.gateway = gw
	} else {
		conn, err = net.DialTimeout("tcp", c.address, params.Timeout)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Can't reach '%s' at %s", params.Host, c.address),
				suggestionForDialError(err))
		}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.address, config)
	if err != nil {
		conn.Close()
		if c.gateway != nil {
			c.gateway.Close()
		}

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", params.Host),
			suggestionForHandshakeError(err, c.encryptedKeys))
	}

	c.Client = ssh.NewClient(sshConn, chans, reqs)
	return c, nil
}

// Close closes the SSH connection and any gateway hop beneath it.
func (c *Client) Close() error {
	var err error
	if c.Client != nil {
		err = c.Client.Close()
	}
	if c.gateway != nil {
		if gwErr := c.gateway.Close(); err == nil {
			err = gwErr
		}
	}
	return err
}

// Addr returns the resolved host:port address.
func (c *Client) Addr() string {
	return c.address
}

// clientConfig builds the ssh.ClientConfig for params, assembling the auth
// chain and the host key callback.
func (c *Client) clientConfig(params *Params) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	tryKeyFile := func(keyPath string) {
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				c.encryptedKeys = append(c.encryptedKeys, keyPath)
			}
			// Other errors (file not found, etc.) are silently ignored
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	if params.UseAgent {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	for _, keyPath := range params.IdentityFiles {
		tryKeyFile(ExpandPath(keyPath))
	}

	if params.Password != "" {
		authMethods = append(authMethods, ssh.Password(params.Password))
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Check your keys are loaded: ssh-add -l"
		if len(c.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(c.encryptedKeys, ", "))
			suggestion = encryptedKeySuggestion(c.encryptedKeys)
		}
		return nil, errors.New(errors.ErrSSH, msg, suggestion)
	}

	var hostKeyCallback ssh.HostKeyCallback
	if params.StrictHostKey {
		knownHostsPath := params.KnownHostsFile
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(HomeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // User explicitly disabled host key checking
	}

	timeout := params.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &ssh.ClientConfig{
		User:            params.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across multiple SSH connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// Only return agent auth if the agent actually has keys.
	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
// This should be called when the application is shutting down.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var passErr *ssh.PassphraseMissingError
		if stderrors.As(err, &passErr) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return strings.Contains(string(data), "ENCRYPTED")
}

// HomeDir returns the current user's home directory.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// CurrentUser returns the local login name, falling back to root.
func CurrentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return encryptedKeySuggestion(encryptedKeys)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

func encryptedKeySuggestion(encryptedKeys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range encryptedKeys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  To update known_hosts with all key types:\n"+
			"    ssh-keyscan -t rsa,ecdsa,ed25519 %s >> %s\n\n"+
			"  Or remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host, e.KnownHosts, host)
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	// Create known_hosts if it doesn't exist yet
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		dir := filepath.Dir(knownHostsPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
