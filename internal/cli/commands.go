package cli

import (
	"os"
	"strings"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	execFlags    CommonFlags
	runFlags     CommonFlags
	runListFlag  bool
	initForce    bool
	hostsDetails bool
)

// execCmd runs an ad-hoc shell command on the target hosts
var execCmd = &cobra.Command{
	Use:   "exec [command]",
	Short: "Run a shell command on the target hosts",
	Long: `Execute a shell command on every target host and summarize the results.

Hosts come from -H (comma-separated shorthand or aliases). Execution is
serial in list order by default; -P N caps a parallel run at N hosts at
once, --parallel runs every host concurrently. Every host is attempted
even when one fails.

Examples:
  flotilla exec -H web1,web2 "uptime"
  flotilla exec -H deploy@10.0.0.5:2222 "df -h /"
  flotilla exec -H web1,web2,web3 -P 2 --fail-fast "systemctl restart app"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := fleet.Shell(strings.Join(args, " "))
		if err != nil {
			return err
		}

		// --env rides the per-call override layer, so it's already part
		// of the resolved connection config.
		code, err := RunWorkflow(&execFlags, WorkflowOptions{Task: task})
		exitCode = code
		return err
	},
}

// runCmd runs a named task from the config file
var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run a named task from .flotilla.yaml",
	Long: `Run a task defined in the tasks: section of .flotilla.yaml.

A task bundles a command, environment variables, and optionally its own
host list and pool size. Flags given here still win over task settings.

Examples:
  flotilla run deploy -H web1,web2
  flotilla run healthcheck
  flotilla run --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runListFlag {
			code, err := listTasks()
			exitCode = code
			return err
		}
		if len(args) == 0 {
			return errors.New(errors.ErrConfig,
				"No task name given",
				"Run 'flotilla run --list' to see configured tasks.")
		}
		code, err := taskCommand(args[0], &runFlags)
		exitCode = code
		return err
	},
}

// hostsCmd lists the hosts flotilla knows about
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List configured hosts",
	Long: `List hosts from .flotilla.yaml and your SSH config.

Shows each host's alias, resolved address, and where it came from.

Examples:
  flotilla hosts
  flotilla hosts --details`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := hostsCommand(hostsDetails)
		exitCode = code
		return err
	},
}

// initCmd creates a starter .flotilla.yaml
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter .flotilla.yaml",
	Long: `Write a commented starter configuration to .flotilla.yaml in the
current directory.

Examples:
  flotilla init
  flotilla init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := initCommand(initForce)
		exitCode = code
		return err
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for flotilla.

Examples:
  # Bash
  flotilla completion bash > /etc/bash_completion.d/flotilla

  # Zsh
  flotilla completion zsh > "${fpath[1]}/_flotilla"`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrExec,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	AddCommonFlags(execCmd, &execFlags)
	AddCommonFlags(runCmd, &runFlags)
	runCmd.Flags().BoolVarP(&runListFlag, "list", "l", false, "list configured tasks")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	hostsCmd.Flags().BoolVar(&hostsDetails, "details", false, "show resolved connection settings")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
