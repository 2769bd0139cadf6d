// Package config loads and validates the .flotilla.yaml configuration file:
// global connection defaults, the per-host override table, and named tasks.
package config

import (
	"time"

	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/drockwell/flotilla/pkg/sshutil"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .flotilla.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// SSHConfig is the OpenSSH client config consulted during resolution.
	// Empty means ~/.ssh/config; "off" disables the layer.
	SSHConfig string `yaml:"ssh_config,omitempty" mapstructure:"ssh_config"`

	// Defaults is the global bottom layer of connection resolution.
	Defaults DefaultsConfig `yaml:"defaults,omitempty" mapstructure:"defaults"`

	// Hosts is the per-host override table, keyed by alias or host string.
	Hosts map[string]fleet.Overrides `yaml:"hosts,omitempty" mapstructure:"hosts"`

	// Tasks are named units of work runnable with 'flotilla run <name>'.
	Tasks map[string]TaskConfig `yaml:"tasks,omitempty" mapstructure:"tasks"`
}

// DefaultsConfig overrides the built-in connection defaults. Unset fields
// keep their built-in values.
type DefaultsConfig struct {
	User            string        `yaml:"user,omitempty" mapstructure:"user"`
	Port            int           `yaml:"port,omitempty" mapstructure:"port"`
	IdentityFiles   []string      `yaml:"identity_files,omitempty" mapstructure:"identity_files"`
	UseAgent        *bool         `yaml:"use_agent,omitempty" mapstructure:"use_agent"`
	StrictHostKey   *bool         `yaml:"strict_host_key,omitempty" mapstructure:"strict_host_key"`
	KnownHostsFile  string        `yaml:"known_hosts_file,omitempty" mapstructure:"known_hosts_file"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
	ConnectAttempts int           `yaml:"connect_attempts,omitempty" mapstructure:"connect_attempts"`
}

// TaskConfig defines a named task.
type TaskConfig struct {
	// Description shown in 'flotilla run --list'.
	Description string `yaml:"description,omitempty" mapstructure:"description"`

	// Run is the shell command to execute.
	Run string `yaml:"run,omitempty" mapstructure:"run"`

	// Env contains environment variables for this task.
	Env map[string]string `yaml:"env,omitempty" mapstructure:"env"`

	// Hosts restricts this task to specific hosts; empty means the host
	// list given on the command line.
	Hosts []string `yaml:"hosts,omitempty" mapstructure:"hosts"`

	// Pool caps parallel workers for this task; 0 inherits the CLI flag.
	Pool int `yaml:"pool,omitempty" mapstructure:"pool"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Hosts:   make(map[string]fleet.Overrides),
		Tasks:   make(map[string]TaskConfig),
	}
}

// Resolver builds a fleet.Resolver from this config: built-in defaults
// patched by the defaults section, the SSH config layer, and the host table.
func (c *Config) Resolver() *fleet.Resolver {
	defaults := fleet.DefaultDefaults()
	if c.Defaults.User != "" {
		defaults.User = c.Defaults.User
	}
	if c.Defaults.Port != 0 {
		defaults.Port = c.Defaults.Port
	}
	if c.Defaults.IdentityFiles != nil {
		defaults.IdentityFiles = c.Defaults.IdentityFiles
	}
	if c.Defaults.UseAgent != nil {
		defaults.UseAgent = *c.Defaults.UseAgent
	}
	if c.Defaults.StrictHostKey != nil {
		defaults.StrictHostKey = *c.Defaults.StrictHostKey
	}
	if c.Defaults.KnownHostsFile != "" {
		defaults.KnownHostsFile = c.Defaults.KnownHostsFile
	}
	if c.Defaults.ConnectTimeout != 0 {
		defaults.ConnectTimeout = c.Defaults.ConnectTimeout
	}
	if c.Defaults.ConnectAttempts != 0 {
		defaults.ConnectAttempts = c.Defaults.ConnectAttempts
	}

	sshConfigPath := c.SSHConfig
	switch sshConfigPath {
	case "":
		sshConfigPath = sshutil.DefaultSSHConfigPath()
	case "off":
		sshConfigPath = ""
	default:
		sshConfigPath = sshutil.ExpandPath(sshConfigPath)
	}

	return &fleet.Resolver{
		Defaults:      defaults,
		SSHConfigPath: sshConfigPath,
		HostOverrides: c.Hosts,
	}
}
