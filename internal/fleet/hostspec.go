// Package fleet implements the multi-host execution coordinator: it resolves
// per-host connection configuration, opens connections lazily, dispatches a
// task against every host serially or through a bounded worker pool, and
// aggregates per-host outcomes so one host's failure never blocks the rest.
package fleet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/drockwell/flotilla/internal/errors"
)

// HostSpec identifies one remote endpoint. It is parsed once from a host
// string and immutable afterwards. User and Port are zero-valued when the
// string carried no shorthand for them; resolution fills the gaps.
type HostSpec struct {
	// Host is the bare hostname, IP address, or SSH config alias.
	Host string

	// User is the login name from a user@host shorthand, or empty.
	User string

	// Port is the port from a host:port shorthand, or 0.
	Port int

	// raw is the original string as given, kept as the primary override key.
	raw string
}

// ParseHostSpec parses a host string of the form host, user@host, host:port,
// or user@host:port.
//
// IPv6 addresses contain colons, so any host part with more than one colon
// disables the port shorthand; use an explicit port override instead.
func ParseHostSpec(s string) (HostSpec, error) {
	spec := HostSpec{raw: s}

	hostport := s
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		spec.User = s[:idx]
		hostport = s[idx+1:]
	}

	if strings.Count(hostport, ":") > 1 {
		// IPv6: can't reliably tell where the address ends and a port
		// begins, so take the whole thing as the host.
		spec.Host = hostport
	} else if idx := strings.LastIndex(hostport, ":"); idx != -1 {
		port, err := strconv.Atoi(hostport[idx+1:])
		if err != nil || port <= 0 || port > 65535 {
			return HostSpec{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Invalid port in host '%s'", s),
				"Use host, user@host, host:port, or user@host:port")
		}
		spec.Host = hostport[:idx]
		spec.Port = port
	} else {
		spec.Host = hostport
	}

	if spec.Host == "" {
		return HostSpec{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Empty hostname in host '%s'", s),
			"Use host, user@host, host:port, or user@host:port")
	}

	return spec, nil
}

// ParseHostList parses a comma-separated host list, preserving order.
func ParseHostList(list string) ([]HostSpec, error) {
	var specs []HostSpec
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec, err := ParseHostSpec(part)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"Empty host list",
			"Pass at least one host: --hosts web1,web2")
	}
	return specs, nil
}

// Aliases returns the names usable as config-override keys for this spec, in
// lookup order: the original string as given, then the bare host.
func (h HostSpec) Aliases() []string {
	if h.raw != "" && h.raw != h.Host {
		return []string{h.raw, h.Host}
	}
	return []string{h.Host}
}

// String returns the spec as originally given.
func (h HostSpec) String() string {
	if h.raw != "" {
		return h.raw
	}
	return h.Host
}
