package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/preflight"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
)

func newSystemCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "System configuration and status",
	}
	cmd.AddCommand(newSystemGetCommand(ctx))
	cmd.AddCommand(newSystemSetMaxConcurrentCommand(ctx))
	cmd.AddCommand(newSystemStatusCommand(ctx))
	return cmd
}

func newSystemGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Show system configuration values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] != scheduler.SettingMaxConcurrentWorkflows {
				return fmt.Errorf("unknown system configuration key %q", args[0])
			}
			return ctx.withScheduler(func(_ *store.Store, sched *scheduler.Scheduler) error {
				limit, err := sched.MaxConcurrentWorkflows(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", scheduler.SettingMaxConcurrentWorkflows, limit)
				return nil
			})
		},
	}
}

func newSystemSetMaxConcurrentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-max-concurrent <n>",
		Short: "Set the maximum number of concurrently running executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", scheduler.SettingMaxConcurrentWorkflows, err)
			}
			return ctx.withScheduler(func(_ *store.Store, sched *scheduler.Scheduler) error {
				if err := sched.SetMaxConcurrentWorkflows(cmd.Context(), n); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s set to %d\n", scheduler.SettingMaxConcurrentWorkflows, n)
				return nil
			})
		},
	}
}

func newSystemStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, admission and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withScheduler(func(st *store.Store, sched *scheduler.Scheduler) error {
				snapshot, err := sched.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				counts, err := st.CountExecutions(cmd.Context())
				if err != nil {
					return err
				}
				running, err := daemonRunning(cfg)
				if err != nil {
					return err
				}
				checks := preflight.RunAll(cmd.Context(), cfg)

				if asJSON {
					return writeJSON(cmd, map[string]any{
						"daemon_running": running,
						"admission":      snapshot,
						"executions":     counts,
						"checks":         checks,
					})
				}
				renderSystemStatus(cmd, running, snapshot, counts, checks)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// daemonRunning tries the daemon lock; getting it means no daemon is up.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("check daemon lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func renderSystemStatus(cmd *cobra.Command, running bool, snapshot scheduler.Snapshot, counts map[store.Status]int, checks []preflight.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "Running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running (start with `mediaflow daemon run`)", colorize))
	}

	for _, line := range renderSectionHeader("Admission", colorize) {
		fmt.Fprintln(out, line)
	}
	kind := statusOK
	if snapshot.Running >= int64(snapshot.Limit) {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Running", kind, fmt.Sprintf("%d of %d", snapshot.Running, snapshot.Limit), colorize))
	fmt.Fprintln(out, renderStatusLine("Waiting", statusInfo, strconv.Itoa(len(snapshot.Waiting)), colorize))

	fmt.Fprintln(out, renderTable(statusCountColumns, statusCountRows(counts)))

	if len(checks) == 0 {
		return
	}
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
}
