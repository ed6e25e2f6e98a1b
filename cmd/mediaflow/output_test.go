package main

import (
	"strings"
	"testing"

	"mediaflow/internal/operator"
	"mediaflow/internal/store"
)

func TestRenderTableLabelsStatusColumns(t *testing.T) {
	out := renderTable(statusCountColumns, statusCountRows(map[store.Status]int{store.StatusExecuting: 3}))
	for _, want := range []string{"Executing", "3", "Queued", "0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in\n%s", want, out)
		}
	}
	if strings.Index(out, "Queued") > strings.Index(out, "Complete") {
		t.Fatalf("expected lifecycle order, got\n%s", out)
	}
}

func TestMediaRowsSortedByType(t *testing.T) {
	rows := mediaRows(map[string]operator.MediaObject{
		"Video":     {S3Bucket: "in", S3Key: "movie.mp4"},
		"Text":      {S3Bucket: "out", S3Key: "t.json"},
		"Thumbnail": {S3Bucket: "out", S3Key: "thumb.jpg"},
	})
	if len(rows) != 3 || rows[0][0] != "Text" || rows[2][0] != "Video" || rows[0][1] != "out/t.json" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestExecutionListJSONEmptyIsArray(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"execution", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("execution list failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected [], got %q", out)
	}
}
