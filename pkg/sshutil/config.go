package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// SSHHostEntry represents a parsed host entry from an SSH config file.
type SSHHostEntry struct {
	Alias        string // The Host pattern (alias)
	Hostname     string // The HostName value (actual host to connect to)
	User         string // The User value
	Port         string // The Port value
	IdentityFile string // The IdentityFile value
	ProxyJump    string // The ProxyJump value (gateway alias)
}

// Description returns a user-friendly description of the host.
func (h SSHHostEntry) Description() string {
	parts := []string{}

	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}

	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}

	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}

	if len(parts) == 0 {
		return h.Alias
	}

	return strings.Join(parts, ", ")
}

// DefaultSSHConfigPath returns the conventional ~/.ssh/config location.
func DefaultSSHConfigPath() string {
	return filepath.Join(HomeDir(), ".ssh", "config")
}

// ParseSSHConfigFile parses the specified SSH config file and returns all
// concrete host entries. Wildcard patterns are skipped.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	cfg, err := decodeSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No SSH config is fine
		}
		return nil, err
	}

	var hosts []SSHHostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()

			// Skip wildcards and special patterns
			if strings.Contains(alias, "*") || strings.Contains(alias, "?") {
				continue
			}

			if seen[alias] {
				continue
			}
			seen[alias] = true

			hosts = append(hosts, lookupEntry(cfg, alias))
		}
	}

	// Sort by alias for consistent ordering
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})

	return hosts, nil
}

// LookupSSHConfig resolves a single alias against the SSH config file.
// Returns a zero-value entry (with only Alias set) when the file is missing
// or has nothing for the alias, so callers can merge unconditionally.
func LookupSSHConfig(configPath, alias string) (SSHHostEntry, error) {
	cfg, err := decodeSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SSHHostEntry{Alias: alias}, nil
		}
		return SSHHostEntry{}, err
	}
	return lookupEntry(cfg, alias), nil
}

func lookupEntry(cfg *ssh_config.Config, alias string) SSHHostEntry {
	entry := SSHHostEntry{Alias: alias}

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		entry.Hostname = hostname
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		entry.User = user
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		entry.Port = port
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		entry.IdentityFile = ExpandPath(identity)
	}
	if jump, _ := cfg.Get(alias, "ProxyJump"); jump != "" {
		entry.ProxyJump = jump
	}

	return entry
}

func decodeSSHConfig(configPath string) (*ssh_config.Config, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if err != nil {
		return nil, err
	}
	return ssh_config.Decode(bytes.NewReader(content))
}

// preprocessSSHConfig reads the SSH config and returns content up to the first
// Match directive. The kevinburke/ssh_config library doesn't support Match, so
// only content before the first Match block is parsed.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Match directive check (case insensitive)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1 // 1-indexed line number
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}
