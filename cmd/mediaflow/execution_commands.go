package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/operator"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
)

func newExecutionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execution",
		Aliases: []string{"exec"},
		Short:   "Request and inspect workflow executions",
	}
	cmd.AddCommand(newExecutionStartCommand(ctx))
	cmd.AddCommand(newExecutionListCommand(ctx))
	cmd.AddCommand(newExecutionShowCommand(ctx))
	cmd.AddCommand(newExecutionDeleteCommand(ctx))
	return cmd
}

func newExecutionStartCommand(ctx *commandContext) *cobra.Command {
	var (
		assetID   string
		media     []string
		metadata  []string
		overrides string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "start <workflow>",
		Short: "Request a workflow execution for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseGlobals(media, metadata)
			if err != nil {
				return err
			}
			var cfgOverrides store.Overrides
			if strings.TrimSpace(overrides) != "" {
				if err := json.Unmarshal([]byte(overrides), &cfgOverrides); err != nil {
					return fmt.Errorf("parse --overrides: %w", err)
				}
			}

			return ctx.withScheduler(func(st *store.Store, sched *scheduler.Scheduler) error {
				queued, err := sched.RequestExecution(cmd.Context(), scheduler.Request{
					Workflow:      args[0],
					AssetID:       assetID,
					Input:         input,
					Configuration: cfgOverrides,
					Trigger:       "cli",
				})
				if err != nil {
					return err
				}
				current, err := st.GetExecution(cmd.Context(), queued.ID)
				if err != nil {
					return err
				}
				if current == nil {
					current = queued
				}
				if asJSON {
					return writeJSON(cmd, current)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Execution %s %s (workflow %s v%d)\n",
					current.ID, statusLabel(string(current.Status)), current.Workflow.Name, current.Workflow.Version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&assetID, "asset", "", "Asset identifier (required)")
	cmd.Flags().StringArrayVar(&media, "media", nil, "Input media as Type=bucket/key (repeatable)")
	cmd.Flags().StringArrayVar(&metadata, "metadata", nil, "Input metadata as key=value (repeatable)")
	cmd.Flags().StringVar(&overrides, "overrides", "", `Configuration overrides as JSON, e.g. {"StageA":{"Op":{"Enabled":false}}}`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("asset")
	return cmd
}

// parseGlobals builds execution input from --media and --metadata flags.
func parseGlobals(media, metadata []string) (operator.Globals, error) {
	globals := operator.Globals{Media: map[string]operator.MediaObject{}, MetaData: map[string]any{}}
	for _, entry := range media {
		kind, location, ok := strings.Cut(entry, "=")
		bucket, key, ok2 := strings.Cut(location, "/")
		if !ok || !ok2 || strings.TrimSpace(kind) == "" || bucket == "" || key == "" {
			return operator.Globals{}, fmt.Errorf("invalid --media %q (want Type=bucket/key)", entry)
		}
		globals.Media[strings.TrimSpace(kind)] = operator.MediaObject{S3Bucket: bucket, S3Key: key}
	}
	for _, entry := range metadata {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return operator.Globals{}, fmt.Errorf("invalid --metadata %q (want key=value)", entry)
		}
		globals.MetaData[strings.TrimSpace(key)] = value
	}
	return globals, nil
}

func newExecutionListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		assetID  string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]store.Status, 0, len(statuses))
			for _, raw := range statuses {
				status, ok := store.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter = append(filter, status)
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				var (
					execs []*store.Execution
					err   error
				)
				if assetID != "" {
					execs, err = st.ListExecutionsByAsset(cmd.Context(), assetID)
					execs = filterByStatus(execs, filter)
				} else {
					execs, err = st.ListExecutions(cmd.Context(), filter...)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSONList(cmd, execs)
				}
				out := cmd.OutOrStdout()
				if len(execs) == 0 {
					fmt.Fprintln(out, "No executions found")
					return nil
				}
				fmt.Fprintln(out, renderTable(executionColumns, executionRows(execs)))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&assetID, "asset", "", "Only executions for this asset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func filterByStatus(execs []*store.Execution, statuses []store.Status) []*store.Execution {
	if len(statuses) == 0 {
		return execs
	}
	wanted := make(map[store.Status]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}
	filtered := execs[:0]
	for _, exec := range execs {
		if _, ok := wanted[exec.Status]; ok {
			filtered = append(filtered, exec)
		}
	}
	return filtered
}

func newExecutionShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one execution with its stages and operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				exec, err := st.GetExecution(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if exec == nil {
					return fmt.Errorf("execution %s not found", args[0])
				}
				if asJSON {
					return writeJSON(cmd, exec)
				}
				renderExecution(cmd, exec)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderExecution(cmd *cobra.Command, exec *store.Execution) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Execution "+exec.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", executionStatusKind(exec.Status), statusLabel(string(exec.Status)), colorize))
	fmt.Fprintln(out, renderStatusLine("Workflow", statusInfo, fmt.Sprintf("%s v%d", exec.Workflow.Name, exec.Workflow.Version), colorize))
	fmt.Fprintln(out, renderStatusLine("Asset", statusInfo, exec.AssetID, colorize))
	fmt.Fprintln(out, renderStatusLine("Current Stage", statusInfo, exec.CurrentStage, colorize))
	if exec.Message != "" {
		fmt.Fprintln(out, renderStatusLine("Message", statusError, exec.Message, colorize))
	}

	fmt.Fprintln(out, renderTable(stageOperationColumns, stageOperationRows(exec)))
	if len(exec.Globals.Media) > 0 {
		fmt.Fprintln(out, renderTable(mediaColumns, mediaRows(exec.Globals.Media)))
	}
}

func newExecutionDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a finished execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				exec, err := st.GetExecution(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if exec == nil {
					return errors.New("execution not found")
				}
				if err := st.DeleteExecution(cmd.Context(), exec.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted execution %s\n", exec.ID)
				return nil
			})
		},
	}
}
