package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/drockwell/flotilla/internal/config"
	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/drockwell/flotilla/internal/logger"
	"github.com/drockwell/flotilla/internal/ui"
	"github.com/drockwell/flotilla/pkg/sshutil"
)

// WorkflowOptions carries everything the execution workflow needs beyond
// the common flags: the task to run and any config-level host restriction.
type WorkflowOptions struct {
	Task      fleet.Task
	TaskHosts []string // task-level host list; overrides -H when set
	TaskPool  int      // task-level pool cap; loses to an explicit -P
}

// RunWorkflow is the shared engine behind run and exec: load config,
// resolve the host list into a group, execute the task, summarize.
// The returned int is the process exit code.
func RunWorkflow(flags *CommonFlags, opts WorkflowOptions) (int, error) {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return 1, err
	}

	specs, err := targetHosts(flags, opts.TaskHosts)
	if err != nil {
		return 1, err
	}

	call, err := flags.CallOverrides()
	if err != nil {
		return 1, err
	}

	groupOpts, err := flags.GroupOptions(opts.TaskPool)
	if err != nil {
		return 1, err
	}
	groupOpts.Logger = logger.Default()

	group, err := fleet.NewGroup(specs, cfg.Resolver(), call, groupOpts)
	if err != nil {
		return 1, err
	}
	defer group.Close()
	// The agent socket is shared across every dial in the run.
	defer sshutil.CloseAgent()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs, err := group.Execute(ctx, opts.Task)
	if rs != nil {
		ui.NewSummary(os.Stdout).Render(rs)
	}
	if err != nil {
		if _, ok := err.(*fleet.GroupFailure); ok {
			// Already rendered host by host; the summary is the message.
			return 1, nil
		}
		return 1, err
	}
	if rs != nil && len(rs.Failed()) > 0 {
		return 1, nil
	}
	return 0, nil
}

// targetHosts picks the effective host list: the task's own list when it
// has one, otherwise the -H flag.
func targetHosts(flags *CommonFlags, taskHosts []string) ([]fleet.HostSpec, error) {
	if len(taskHosts) > 0 {
		specs := make([]fleet.HostSpec, 0, len(taskHosts))
		for _, h := range taskHosts {
			spec, err := fleet.ParseHostSpec(h)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
		return specs, nil
	}
	if flags.Hosts == "" {
		return nil, errors.New(errors.ErrConfig,
			"No target hosts",
			"Pass -H host1,host2 or give the task a hosts list in .flotilla.yaml.")
	}
	return fleet.ParseHostList(flags.Hosts)
}

// taskCommand resolves a named task from the config and runs it.
func taskCommand(name string, flags *CommonFlags) (int, error) {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return 1, err
	}

	tc, ok := cfg.Tasks[name]
	if !ok {
		return 1, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown task: %s", name),
			"Run 'flotilla run --list' to see configured tasks.")
	}

	task, err := fleet.Shell(tc.Run)
	if err != nil {
		return 1, err
	}
	task.Env = tc.Env

	return RunWorkflow(flags, WorkflowOptions{
		Task:      task,
		TaskHosts: tc.Hosts,
		TaskPool:  tc.Pool,
	})
}

// listTasks prints the configured tasks, sorted by name.
func listTasks() (int, error) {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return 1, err
	}
	if len(cfg.Tasks) == 0 {
		fmt.Println("No tasks configured. Add a tasks: section to .flotilla.yaml.")
		return 0, nil
	}

	names := make([]string, 0, len(cfg.Tasks))
	for name := range cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	nameStyle := lipgloss.NewStyle().Bold(true)
	for _, name := range names {
		tc := cfg.Tasks[name]
		line := "  " + nameStyle.Render(name)
		if tc.Description != "" {
			line += "  " + tc.Description
		}
		fmt.Println(line)
		fmt.Printf("      %s\n", tc.Run)
	}
	return 0, nil
}
