package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"storyboarder/internal/api"
	"storyboarder/internal/storyboard"
	"storyboarder/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	transcript string
	calls      *atomic.Int32
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	var calls atomic.Int32
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok": true}`}}},
		})
	}))
	t.Cleanup(llmServer.Close)

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[llm]
api_key = "test"
base_url = %q
cache_ttl_seconds = 0

[storyboard]
focal_points = ["Keeper"]
animation_style = "watercolor"
setting = "a harbour town"
attempt_timeout_seconds = 5

[server]
bind = "127.0.0.1:0"

[logging]
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"), llmServer.URL)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		baseDir:    base,
		configPath: configPath,
		transcript: testsupport.WriteTranscript(t, base, "storm.json", testsupport.StormTranscript()),
		calls:      &calls,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestPlanCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", env.transcript}, "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "The storm arrived.")
	requireContains(t, out, "00:00:02")

	out, _, err = runCLI(t, []string{"plan", "--json", env.transcript}, "")
	if err != nil {
		t.Fatalf("plan --json: %v", err)
	}
	var plan struct {
		Seconds int                    `json:"seconds"`
		Clips   []storyboard.PlanEntry `json:"clips"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Seconds != 5 || len(plan.Clips) != 2 {
		t.Fatalf("unexpected plan %#v", plan)
	}
	if env.calls.Load() != 0 {
		t.Fatal("plan must not call the model")
	}
}

func TestGenerateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLI(t, []string{"generate", env.transcript}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	requireContains(t, out, "00:00:02")
	requireContains(t, out, "watercolor")
	requireContains(t, stderr, "attempt 1")
	requireContains(t, stderr, "[OK]")

	out, _, err = runCLI(t, []string{"generate", "--json", "--setting", "a fishing village", env.transcript}, env.configPath)
	if err != nil {
		t.Fatalf("generate --json: %v", err)
	}
	var rows []storyboard.OutputRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 2 || !strings.Contains(rows[1].Prompt, "fishing village") || rows[0].Timestamp != "00:00:00" || rows[0].VerbatimText != "The storm arrived." || rows[0].FocalPoint != storyboard.OtherFocalPoint {
		t.Fatalf("unexpected rows %#v", rows)
	}
}

func TestGenerateExhaustionFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "--style", "the same watercolor", "--max-repair-passes", "0", env.transcript}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "failed validation") {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if env.calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d calls", env.calls.Load())
	}
}

func TestGenerateSaveAndJobsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, []string{"generate", "--save", "--json", env.transcript}, env.configPath)
	if err != nil {
		t.Fatalf("generate --save: %v", err)
	}
	requireContains(t, stderr, "completed")

	out, _, err := runCLI(t, []string{"jobs", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	var list []api.Job
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list) != 1 || list[0].Status != "completed" || list[0].Source != "cli" {
		t.Fatalf("unexpected jobs %#v", list)
	}
	id := list[0].ID

	out, _, err = runCLI(t, []string{"jobs", "show", id}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Status:       completed")
	requireContains(t, out, "00:00:02")

	out, _, err = runCLI(t, []string{"jobs", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs stats: %v", err)
	}
	requireContains(t, out, "completed")

	if _, _, err := runCLI(t, []string{"jobs", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}

	out, _, err = runCLI(t, []string{"jobs", "remove", id}, env.configPath)
	if err != nil {
		t.Fatalf("jobs remove: %v", err)
	}
	requireContains(t, out, "Removed job "+id)

	out, _, err = runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "No jobs found")
}

func TestBatchCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	second := testsupport.WriteTranscript(t, env.baseDir, "calm.json", []testsupport.TranscriptRow{
		{Timestamp: "0", Text: "All"},
		{Timestamp: "1", Text: "quiet."},
	})
	outDir := filepath.Join(env.baseDir, "boards")

	out, _, err := runCLI(t, []string{"batch", "--out-dir", outDir, "--rpm", "600", env.transcript, second}, env.configPath)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	requireContains(t, out, "storm")
	requireContains(t, out, "calm")
	requireContains(t, out, "completed")

	for _, name := range []string{"storm", "calm"} {
		data, err := os.ReadFile(filepath.Join(outDir, name+".storyboard.json"))
		if err != nil {
			t.Fatalf("read %s output: %v", name, err)
		}
		var rows []storyboard.OutputRow
		if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
			t.Fatalf("bad %s output: %v %s", name, err, data)
		}
	}
}

func TestLLMHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"llm", "health"}, env.configPath)
	if err != nil {
		t.Fatalf("llm health: %v", err)
	}
	requireContains(t, out, "openrouter")
	requireContains(t, out, "[OK]")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "present")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected existing config to be refused without --overwrite")
	}
}
