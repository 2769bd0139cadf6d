package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/drockwell/flotilla/internal/config"
	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/drockwell/flotilla/pkg/sshutil"
)

// hostsCommand lists hosts from the flotilla config and the SSH config,
// flotilla entries first. With details, each host also shows its fully
// resolved connection settings.
func hostsCommand(details bool) (int, error) {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return 1, err
	}

	aliasStyle := lipgloss.NewStyle().Bold(true)
	sourceStyle := lipgloss.NewStyle().Faint(true)
	resolver := cfg.Resolver()

	aliases := make([]string, 0, len(cfg.Hosts))
	for alias := range cfg.Hosts {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	seen := make(map[string]bool, len(aliases))
	for _, alias := range aliases {
		seen[alias] = true
		fmt.Printf("  %s %s\n", aliasStyle.Render(alias), sourceStyle.Render("(.flotilla.yaml)"))
		if details {
			printResolved(resolver, alias)
		}
	}

	if resolver.SSHConfigPath != "" {
		entries, err := sshutil.ParseSSHConfigFile(resolver.SSHConfigPath)
		if err == nil {
			for _, entry := range entries {
				if seen[entry.Alias] {
					continue
				}
				fmt.Printf("  %s %s\n", aliasStyle.Render(entry.Alias),
					sourceStyle.Render("("+resolver.SSHConfigPath+")"))
				if details {
					printResolved(resolver, entry.Alias)
				}
			}
		}
	}

	if len(aliases) == 0 {
		fmt.Fprintln(os.Stderr, "No hosts in .flotilla.yaml; run 'flotilla init' to create one.")
	}
	return 0, nil
}

// printResolved shows the merged connection settings for one alias.
// Resolution errors are printed inline rather than aborting the listing.
func printResolved(resolver *fleet.Resolver, alias string) {
	spec, err := fleet.ParseHostSpec(alias)
	if err != nil {
		fmt.Printf("      %v\n", err)
		return
	}
	cc, err := resolver.Resolve(spec, nil)
	if err != nil {
		fmt.Printf("      %v\n", err)
		return
	}

	fmt.Printf("      address: %s\n", cc.Identity())
	if len(cc.IdentityFiles) > 0 {
		fmt.Printf("      identity: %s\n", strings.Join(cc.IdentityFiles, ", "))
	}
	if cc.Gateway != nil {
		fmt.Printf("      gateway: %s\n", cc.Gateway.Identity())
	}
	if cc.ConnectTimeout != 0 {
		fmt.Printf("      timeout: %s\n", cc.ConnectTimeout.Round(time.Millisecond))
	}
}
