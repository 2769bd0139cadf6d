package cli

import (
	"fmt"
	"os"

	"github.com/drockwell/flotilla/internal/logger"
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands
var (
	configFlag  string
	verboseFlag bool
)

// rootCmd is the base command for flotilla.
var rootCmd = &cobra.Command{
	Use:   "flotilla",
	Short: "Run commands across a fleet of SSH hosts",
	Long: `Flotilla executes shell commands on groups of remote hosts over SSH.

Hosts are named with user@host:port shorthand or aliases from your
SSH config and .flotilla.yaml. Execution is serial by default, or
parallel with a bounded worker pool. Results are collected per host
and summarized at the end: no host's failure hides another's result.

Examples:
  flotilla exec -H web1,web2 "uptime"
  flotilla exec -H deploy@web1:2222 -P 4 "systemctl restart app"
  flotilla run deploy -H web1,web2,web3`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			os.Setenv("FLOTILLA_DEBUG", "1")
		}
		logger.SetDefault(logger.NewEnvLogger("flotilla"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to .flotilla.yaml (default: search upward from cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug output")
}

// Config returns the --config flag value.
func Config() string {
	return configFlag
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	code, err := executeE()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

// exitCode carries the process exit status out of RunE functions, which
// can only return an error. Command functions set it before returning.
var exitCode int

func executeE() (int, error) {
	if err := rootCmd.Execute(); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}
