package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
)

const definitionsFile = `
[[operations]]
name = "Thumbnail"
configuration = { MediaType = "Video" }

[[operations]]
name = "Transcribe"
configuration = { MediaType = "Audio", Enabled = false }

[[stages]]
name = "Extract"
operations = ["Thumbnail", "Transcribe"]

[[workflows]]
name = "Analyze"
start_at = "Extract"
stages = { Extract = { end = true } }
`

func withMax(n int) testsupport.ConfigOption { return testsupport.WithMaxConcurrent(n) }

func applyDefinitions(t *testing.T, env *cliTestEnv) {
	t.Helper()
	path := writeFile(t, filepath.Join(env.baseDir, "defs.toml"), definitionsFile)
	out, _, err := runCLI(t, []string{"definitions", "apply", path}, env.configPath)
	if err != nil {
		t.Fatalf("definitions apply: %v", err)
	}
	requireContains(t, out, "Analyze v1")
}

func TestDefinitionsApplyAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	applyDefinitions(t, env)

	out, _, err := runCLI(t, []string{"definitions", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("definitions list: %v", err)
	}
	for _, want := range []string{"Analyze", "Extract", "Thumbnail, Transcribe", "Video", "no"} {
		requireContains(t, out, want)
	}

	out, _, err = runCLI(t, []string{"definitions", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("definitions list --json: %v", err)
	}
	var bundle store.DefinitionBundle
	if err := json.Unmarshal([]byte(out), &bundle); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(bundle.Operations) != 2 || len(bundle.Stages) != 1 || len(bundle.Workflows) != 1 {
		t.Fatalf("unexpected bundle %+v", bundle)
	}
}

func TestExecutionStartListShow(t *testing.T) {
	env := setupCLITestEnv(t, withMax(2))
	applyDefinitions(t, env)

	var ids []string
	for _, asset := range []string{"a1", "a2", "a3"} {
		out, _, err := runCLI(t, []string{"execution", "start", "Analyze", "--asset", asset,
			"--media", "Video=in/" + asset + ".mp4", "--metadata", "source=test", "--json"}, env.configPath)
		if err != nil {
			t.Fatalf("execution start %s: %v", asset, err)
		}
		var exec store.Execution
		if err := json.Unmarshal([]byte(out), &exec); err != nil {
			t.Fatalf("decode execution: %v (%s)", err, out)
		}
		ids = append(ids, exec.ID)
		want := store.StatusStarted
		if asset == "a3" {
			want = store.StatusQueued
		}
		if exec.Status != want {
			t.Fatalf("asset %s: expected %s, got %s", asset, want, exec.Status)
		}
	}

	out, _, err := runCLI(t, []string{"execution", "list", "--status", "queued"}, env.configPath)
	if err != nil {
		t.Fatalf("execution list: %v", err)
	}
	requireContains(t, out, ids[2])
	if strings.Contains(out, ids[0]) {
		t.Fatalf("expected status filter to hide %s: %s", ids[0], out)
	}

	out, _, err = runCLI(t, []string{"execution", "list", "--asset", "a1"}, env.configPath)
	if err != nil {
		t.Fatalf("execution list --asset: %v", err)
	}
	requireContains(t, out, ids[0])

	out, _, err = runCLI(t, []string{"execution", "show", ids[0]}, env.configPath)
	if err != nil {
		t.Fatalf("execution show: %v", err)
	}
	for _, want := range []string{"Analyze v1", "Extract", "Thumbnail", "Not Started"} {
		requireContains(t, out, want)
	}

	if _, _, err := runCLI(t, []string{"execution", "delete", ids[0]}, env.configPath); err == nil {
		t.Fatal("expected delete of a running execution to fail")
	}

	out, _, err = runCLI(t, []string{"system", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("system status: %v", err)
	}
	requireContains(t, out, "2 of 2")
	requireContains(t, out, "Not running")
}

func TestExecutionStartValidation(t *testing.T) {
	env := setupCLITestEnv(t)
	applyDefinitions(t, env)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing asset", args: []string{"execution", "start", "Analyze"}},
		{name: "bad media", args: []string{"execution", "start", "Analyze", "--asset", "a", "--media", "Video"}},
		{name: "unknown workflow", args: []string{"execution", "start", "Nope", "--asset", "a"}},
		{name: "bad overrides", args: []string{"execution", "start", "Analyze", "--asset", "a", "--overrides", "{"}},
		{name: "unknown override stage", args: []string{"execution", "start", "Analyze", "--asset", "a", "--overrides", `{"Missing":{"Thumbnail":{"Enabled":false}}}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runCLI(t, tt.args, env.configPath); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestSystemMaxConcurrent(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"system", "set-max-concurrent", "1"}, env.configPath); err == nil {
		t.Fatal("expected limit below the minimum to be rejected")
	}
	if _, _, err := runCLI(t, []string{"system", "set-max-concurrent", "many"}, env.configPath); err == nil {
		t.Fatal("expected non-integer limit to be rejected")
	}
	if _, _, err := runCLI(t, []string{"system", "set-max-concurrent", "5"}, env.configPath); err != nil {
		t.Fatalf("set-max-concurrent: %v", err)
	}
	out, _, err := runCLI(t, []string{"system", "get"}, env.configPath)
	if err != nil {
		t.Fatalf("system get: %v", err)
	}
	requireContains(t, out, "MaxConcurrentWorkflows = 5")

	if _, _, err := runCLI(t, []string{"system", "get", "Unknown"}, env.configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestParseGlobals(t *testing.T) {
	globals, err := parseGlobals([]string{"Video=bucket/path/to/movie.mp4"}, []string{"lang=en"})
	if err != nil {
		t.Fatalf("parseGlobals: %v", err)
	}
	media := globals.Media["Video"]
	if media.S3Bucket != "bucket" || media.S3Key != "path/to/movie.mp4" {
		t.Fatalf("unexpected media %+v", media)
	}
	if globals.MetaData["lang"] != "en" {
		t.Fatalf("unexpected metadata %+v", globals.MetaData)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"not started": "Not Started",
		"COMPLETE":    "Complete",
		"":            "-",
	}
	for in, want := range tests {
		if got := statusLabel(in); got != want {
			t.Fatalf("statusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
