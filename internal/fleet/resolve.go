package fleet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/pkg/sshutil"
)

// ConnectionConfig is the fully resolved, read-only parameter set for one
// host. Built once by the Resolver; nothing mutates it afterwards.
type ConnectionConfig struct {
	Host string
	Port int
	User string

	IdentityFiles []string
	Password      string
	UseAgent      bool

	StrictHostKey  bool
	KnownHostsFile string

	ConnectTimeout  time.Duration
	ConnectAttempts int

	// Env is exported on the remote command line before every command.
	Env map[string]string

	// Gateway, when non-nil, is the resolved config of the intermediate hop.
	Gateway *ConnectionConfig
}

// Identity returns the user@host:port string identifying this endpoint.
func (c *ConnectionConfig) Identity() string {
	return fmt.Sprintf("%s@%s:%d", c.User, c.Host, c.Port)
}

// Defaults holds the built-in bottom layer of the merge. Every field is
// concrete; higher layers overwrite only the fields they set.
type Defaults struct {
	User            string
	Port            int
	IdentityFiles   []string
	UseAgent        bool
	StrictHostKey   bool
	KnownHostsFile  string
	ConnectTimeout  time.Duration
	ConnectAttempts int
}

// DefaultDefaults returns the built-in defaults: current local user, port 22,
// agent auth plus the conventional key files, strict host key checking.
func DefaultDefaults() Defaults {
	home := sshutil.HomeDir()
	return Defaults{
		User: sshutil.CurrentUser(),
		Port: 22,
		IdentityFiles: []string{
			home + "/.ssh/id_ed25519",
			home + "/.ssh/id_rsa",
			home + "/.ssh/id_ecdsa",
		},
		UseAgent:        true,
		StrictHostKey:   true,
		ConnectTimeout:  10 * time.Second,
		ConnectAttempts: 1,
	}
}

// Overrides is one sparse configuration layer. Zero-valued fields pass
// through; set fields overwrite. List and map fields replace the lower
// layer's value wholesale, they never append to it.
type Overrides struct {
	Address         string            `yaml:"address,omitempty" mapstructure:"address"`
	User            string            `yaml:"user,omitempty" mapstructure:"user"`
	Port            int               `yaml:"port,omitempty" mapstructure:"port"`
	IdentityFiles   []string          `yaml:"identity_files,omitempty" mapstructure:"identity_files"`
	Password        string            `yaml:"password,omitempty" mapstructure:"password"`
	UseAgent        *bool             `yaml:"use_agent,omitempty" mapstructure:"use_agent"`
	StrictHostKey   *bool             `yaml:"strict_host_key,omitempty" mapstructure:"strict_host_key"`
	KnownHostsFile  string            `yaml:"known_hosts_file,omitempty" mapstructure:"known_hosts_file"`
	ConnectTimeout  time.Duration     `yaml:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
	ConnectAttempts int               `yaml:"connect_attempts,omitempty" mapstructure:"connect_attempts"`
	Env             map[string]string `yaml:"env,omitempty" mapstructure:"env"`

	// Gateway names another host (alias or host string) to hop through.
	Gateway string `yaml:"gateway,omitempty" mapstructure:"gateway"`
}

// maxGatewayDepth bounds gateway chains so a config cycle can't recurse
// forever.
const maxGatewayDepth = 8

// Resolver merges layered configuration into one ConnectionConfig per host.
// Merge order, highest precedence last: built-in defaults, the SSH config
// file entry for the host, the per-host override table, explicit per-call
// overrides. Resolution is deterministic: identical inputs always produce a
// field-for-field identical config.
type Resolver struct {
	// Defaults is the bottom layer.
	Defaults Defaults

	// SSHConfigPath is an optional OpenSSH client config file consulted
	// between the defaults and the override table. Empty disables the layer.
	SSHConfigPath string

	// HostOverrides is the per-host override table, keyed by host alias.
	HostOverrides map[string]Overrides
}

// NewResolver returns a Resolver with built-in defaults and no file layer.
func NewResolver() *Resolver {
	return &Resolver{Defaults: DefaultDefaults()}
}

// Resolve merges all layers for spec into one immutable ConnectionConfig.
// Returns a CONFIG error when a required field is missing after the merge,
// before any connection is attempted.
func (r *Resolver) Resolve(spec HostSpec, call *Overrides) (*ConnectionConfig, error) {
	return r.resolve(spec, call, 0)
}

func (r *Resolver) resolve(spec HostSpec, call *Overrides, depth int) (*ConnectionConfig, error) {
	if depth > maxGatewayDepth {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Gateway chain for '%s' is too deep (possible cycle)", spec),
			"Check the gateway entries in your host overrides for a loop.")
	}

	// Layer 1: built-in defaults.
	cfg := &ConnectionConfig{
		Host:            spec.Host,
		Port:            r.Defaults.Port,
		User:            r.Defaults.User,
		IdentityFiles:   cloneList(r.Defaults.IdentityFiles),
		UseAgent:        r.Defaults.UseAgent,
		StrictHostKey:   r.Defaults.StrictHostKey,
		KnownHostsFile:  r.Defaults.KnownHostsFile,
		ConnectTimeout:  r.Defaults.ConnectTimeout,
		ConnectAttempts: r.Defaults.ConnectAttempts,
	}

	// Layer 2: SSH config file entry matching the host.
	gateway := ""
	if r.SSHConfigPath != "" {
		entry, err := sshutil.LookupSSHConfig(r.SSHConfigPath, spec.Host)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Failed to parse SSH config at %s", r.SSHConfigPath),
				"Check the file is valid OpenSSH client configuration.")
		}
		applySSHConfigEntry(cfg, entry)
		gateway = entry.ProxyJump
	}

	// Layer 3: per-host override table, first matching alias wins.
	for _, alias := range spec.Aliases() {
		if ov, ok := r.HostOverrides[alias]; ok {
			applyOverrides(cfg, &ov)
			if ov.Gateway != "" {
				gateway = ov.Gateway
			}
			break
		}
	}

	// Layer 4: shorthand from the host string itself, then per-call
	// overrides. Supplying the same field via both is refused rather than
	// silently picking one.
	if call != nil {
		if spec.User != "" && call.User != "" {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("User for '%s' given via both shorthand and override", spec),
				"Pick one: user@host shorthand or the user override.")
		}
		if spec.Port != 0 && call.Port != 0 {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Port for '%s' given via both shorthand and override", spec),
				"Pick one: host:port shorthand or the port override.")
		}
	}
	if spec.User != "" {
		cfg.User = spec.User
	}
	if spec.Port != 0 {
		cfg.Port = spec.Port
	}
	if call != nil {
		applyOverrides(cfg, call)
		if call.Gateway != "" {
			gateway = call.Gateway
		}
	}

	if err := r.validate(spec, cfg); err != nil {
		return nil, err
	}

	if gateway != "" {
		gwSpec, err := ParseHostSpec(gateway)
		if err != nil {
			return nil, err
		}
		if gwSpec.Host == spec.Host {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' is configured as its own gateway", spec),
				"Remove the gateway entry or point it at a different host.")
		}
		cfg.Gateway, err = r.resolve(gwSpec, nil, depth+1)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (r *Resolver) validate(spec HostSpec, cfg *ConnectionConfig) error {
	if cfg.User == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No user resolved for host '%s'", spec),
			"Set a user in defaults, the SSH config file, or as user@host.")
	}
	if !cfg.UseAgent && len(cfg.IdentityFiles) == 0 && cfg.Password == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No auth method resolved for host '%s'", spec),
			"Enable the SSH agent, configure identity_files, or set a password.")
	}
	if cfg.ConnectAttempts < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("connect_attempts for host '%s' must be at least 1", spec),
			"Remove the override or set a positive attempt count.")
	}
	return nil
}

func applySSHConfigEntry(cfg *ConnectionConfig, entry sshutil.SSHHostEntry) {
	if entry.Hostname != "" {
		cfg.Host = entry.Hostname
	}
	if entry.User != "" {
		cfg.User = entry.User
	}
	if entry.Port != "" {
		if port, err := strconv.Atoi(entry.Port); err == nil {
			cfg.Port = port
		}
	}
	if entry.IdentityFile != "" {
		// Replaces the default key list, same as every other layer.
		cfg.IdentityFiles = []string{entry.IdentityFile}
	}
}

func applyOverrides(cfg *ConnectionConfig, ov *Overrides) {
	if ov.Address != "" {
		cfg.Host = ov.Address
	}
	if ov.User != "" {
		cfg.User = ov.User
	}
	if ov.Port != 0 {
		cfg.Port = ov.Port
	}
	if ov.IdentityFiles != nil {
		cfg.IdentityFiles = cloneList(ov.IdentityFiles)
	}
	if ov.Password != "" {
		cfg.Password = ov.Password
	}
	if ov.UseAgent != nil {
		cfg.UseAgent = *ov.UseAgent
	}
	if ov.StrictHostKey != nil {
		cfg.StrictHostKey = *ov.StrictHostKey
	}
	if ov.KnownHostsFile != "" {
		cfg.KnownHostsFile = ov.KnownHostsFile
	}
	if ov.ConnectTimeout != 0 {
		cfg.ConnectTimeout = ov.ConnectTimeout
	}
	if ov.ConnectAttempts != 0 {
		cfg.ConnectAttempts = ov.ConnectAttempts
	}
	if ov.Env != nil {
		cfg.Env = cloneMap(ov.Env)
	}
}

func cloneList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
