package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/spf13/cobra"
)

// CommonFlags holds the standard flags shared by the run and exec commands.
type CommonFlags struct {
	Hosts      string
	Pool       int
	Parallel   bool
	FailFast   bool
	SubmitWait string

	// Per-call connection overrides, highest precedence layer.
	User     string
	Port     int
	Identity []string
	Timeout  string
	Gateway  string
	Env      []string
}

// AddCommonFlags registers the host selection, dispatch, and per-call
// override flags on a command.
func AddCommonFlags(cmd *cobra.Command, flags *CommonFlags) {
	cmd.Flags().StringVarP(&flags.Hosts, "hosts", "H", "", "comma-separated target hosts (user@host:port shorthand or aliases)")
	cmd.Flags().IntVarP(&flags.Pool, "pool", "P", 0, "run hosts in parallel, at most N at once")
	cmd.Flags().BoolVar(&flags.Parallel, "parallel", false, "run hosts in parallel, one worker per host")
	cmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "exit non-zero if any host fails")
	cmd.Flags().StringVar(&flags.SubmitWait, "submit-wait", "", "max wait for a free pool slot (e.g. 30s; empty = wait forever)")

	cmd.Flags().StringVar(&flags.User, "user", "", "login user for all hosts")
	cmd.Flags().IntVar(&flags.Port, "port", 0, "SSH port for all hosts")
	cmd.Flags().StringSliceVarP(&flags.Identity, "identity", "i", nil, "private key file (repeatable)")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "", "connect timeout (e.g. 10s)")
	cmd.Flags().StringVar(&flags.Gateway, "gateway", "", "jump host to tunnel through")
	cmd.Flags().StringSliceVarP(&flags.Env, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
}

// CallOverrides converts the per-call flags into a fleet override layer.
// Returns nil when no override flag was set.
func (f *CommonFlags) CallOverrides() (*fleet.Overrides, error) {
	ov := &fleet.Overrides{
		User:          f.User,
		Port:          f.Port,
		IdentityFiles: f.Identity,
		Gateway:       f.Gateway,
	}

	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid timeout", f.Timeout),
				"Try something like 5s, 2m, or 500ms.")
		}
		ov.ConnectTimeout = d
	}

	env, err := parseEnvFlags(f.Env)
	if err != nil {
		return nil, err
	}
	ov.Env = env

	if ov.User == "" && ov.Port == 0 && ov.IdentityFiles == nil &&
		ov.Gateway == "" && ov.ConnectTimeout == 0 && ov.Env == nil {
		return nil, nil
	}
	return ov, nil
}

// GroupOptions converts the dispatch flags into fleet group options.
// Execution is serial unless --parallel or a pool cap (flag or task level)
// asks otherwise; taskPool loses to an explicit --pool flag.
func (f *CommonFlags) GroupOptions(taskPool int) (fleet.GroupOptions, error) {
	opts := fleet.GroupOptions{
		PoolSize:       f.Pool,
		AbortOnFailure: f.FailFast,
	}
	if opts.PoolSize == 0 && taskPool > 0 {
		opts.PoolSize = taskPool
	}
	if f.Parallel || opts.PoolSize > 0 {
		opts.Mode = fleet.Parallel
	}
	if f.SubmitWait != "" {
		d, err := time.ParseDuration(f.SubmitWait)
		if err != nil {
			return opts, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid wait duration", f.SubmitWait),
				"Try something like 30s or 2m.")
		}
		opts.SubmitWait = d
	}
	return opts, nil
}

// parseEnvFlags turns KEY=VALUE pairs into a map. Returns nil for an
// empty list so the override layer passes through.
func parseEnvFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Invalid env flag: %s", pair),
				"Use KEY=VALUE form, e.g. --env DEPLOY_ENV=staging.")
		}
		env[key] = value
	}
	return env, nil
}
