package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/store"
)

func newDefinitionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definitions",
		Aliases: []string{"defs"},
		Short:   "Manage operation, stage and workflow definitions",
	}
	cmd.AddCommand(newDefinitionsApplyCommand(ctx))
	cmd.AddCommand(newDefinitionsListCommand(ctx))
	return cmd
}

func newDefinitionsApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file.toml>",
		Short: "Create or update definitions from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open definitions: %w", err)
			}
			defer file.Close()
			bundle, err := store.DecodeBundle(file)
			if err != nil {
				return err
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				stored, err := st.ApplyBundle(cmd.Context(), bundle)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Applied %d operation(s), %d stage(s), %d workflow(s)\n",
					len(bundle.Operations), len(bundle.Stages), len(stored))
				for _, wf := range stored {
					fmt.Fprintf(out, "  %s v%d\n", wf.Name, wf.Version)
				}
				return nil
			})
		},
	}
}

func newDefinitionsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				ops, err := st.ListOperations(cmd.Context())
				if err != nil {
					return err
				}
				stages, err := st.ListStages(cmd.Context())
				if err != nil {
					return err
				}
				workflows, err := st.ListWorkflows(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, store.DefinitionBundle{Operations: ops, Stages: stages, Workflows: workflows})
				}

				out := cmd.OutOrStdout()
				if len(ops)+len(stages)+len(workflows) == 0 {
					fmt.Fprintln(out, "No definitions stored")
					return nil
				}
				fmt.Fprintln(out, renderTable(workflowColumns, workflowRows(workflows)))
				fmt.Fprintln(out, renderTable(stageColumns, stageRows(stages)))
				fmt.Fprintln(out, renderTable(operationColumns, operationRows(ops)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

var (
	workflowColumns  = []column{{header: "Workflow"}, {header: "Version", right: true}, {header: "Stages"}}
	stageColumns     = []column{{header: "Stage"}, {header: "Operations"}}
	operationColumns = []column{{header: "Operation"}, {header: "Type"}, {header: "Media Type"}, {header: "Enabled"}}
)

func workflowRows(workflows []store.WorkflowDefinition) [][]string {
	rows := make([][]string, 0, len(workflows))
	for _, wf := range workflows {
		rows = append(rows, []string{wf.Name, strconv.Itoa(wf.Version), strings.Join(wf.OrderedStages(), " -> ")})
	}
	return rows
}

func stageRows(stages []store.StageDefinition) [][]string {
	rows := make([][]string, 0, len(stages))
	for _, stage := range stages {
		ops := append([]string(nil), stage.Operations...)
		sort.Strings(ops)
		rows = append(rows, []string{stage.Name, strings.Join(ops, ", ")})
	}
	return rows
}

func operationRows(ops []store.OperationDefinition) [][]string {
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		mediaType, _ := op.Configuration["MediaType"].(string)
		if mediaType == "" {
			mediaType = "-"
		}
		enabled := "yes"
		if v, ok := op.Configuration["Enabled"].(bool); ok && !v {
			enabled = "no"
		}
		rows = append(rows, []string{op.Name, string(op.Type), mediaType, enabled})
	}
	return rows
}
