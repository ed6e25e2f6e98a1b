package main

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mediaflow/internal/operator"
	"mediaflow/internal/store"
)

// column describes one table column. Status columns run through statusLabel.
type column struct {
	header string
	right  bool
	status bool
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.header
		align := text.AlignLeft
		if c.right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i, c := range columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if c.status && cell != "" {
				cell = statusLabel(cell)
			}
			r[i] = cell
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// byFirstColumn orders rows by their first cell.
func byFirstColumn(rows [][]string) [][]string {
	slices.SortFunc(rows, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return rows
}

var executionColumns = []column{
	{header: "ID"}, {header: "Workflow"}, {header: "Asset"},
	{header: "Status", status: true}, {header: "Stage"}, {header: "Updated"},
}

func executionRows(execs []*store.Execution) [][]string {
	rows := make([][]string, 0, len(execs))
	for _, exec := range execs {
		rows = append(rows, []string{
			exec.ID,
			exec.Workflow.Name,
			exec.AssetID,
			string(exec.Status),
			exec.CurrentStage,
			exec.Updated.Local().Format(time.DateTime),
		})
	}
	return rows
}

var stageOperationColumns = []column{
	{header: "Stage"}, {header: "Stage Status", status: true},
	{header: "Operation"}, {header: "Operation Status", status: true},
}

// stageOperationRows lists operations in workflow order, one row each.
func stageOperationRows(exec *store.Execution) [][]string {
	rows := make([][]string, 0, len(exec.Stages)*2)
	for _, stage := range exec.Stages {
		for _, op := range stage.Operations {
			rows = append(rows, []string{stage.Name, string(stage.Status), op.Name, string(op.Status)})
		}
	}
	return rows
}

var mediaColumns = []column{{header: "Media"}, {header: "Location"}}

func mediaRows(media map[string]operator.MediaObject) [][]string {
	rows := make([][]string, 0, len(media))
	for kind, obj := range media {
		rows = append(rows, []string{kind, obj.S3Bucket + "/" + obj.S3Key})
	}
	return byFirstColumn(rows)
}

var statusCountColumns = []column{{header: "Status", status: true}, {header: "Executions", right: true}}

// statusCountRows lists every execution status in lifecycle order, zeros included.
func statusCountRows(counts map[store.Status]int) [][]string {
	statuses := store.AllStatuses()
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{string(status), strconv.Itoa(counts[status])})
	}
	return rows
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeJSONList writes items as a JSON array; an empty result prints [] rather than null.
func writeJSONList[T any](cmd *cobra.Command, items []T) error {
	if items == nil {
		items = []T{}
	}
	return writeJSON(cmd, items)
}
