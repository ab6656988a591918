package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ccollicutt/waymark/internal/cli"
	"github.com/ccollicutt/waymark/internal/cli/commands"
	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/detector"
	"github.com/ccollicutt/waymark/pkg/files"
	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/query"
	"github.com/ccollicutt/waymark/pkg/rewrite"
	"github.com/ccollicutt/waymark/pkg/webhook"
)

var (
	projectRoot string
	rootOnce    sync.Once
)

// chdir changes to the project root directory for tests.
// Config files use paths relative to project root.
func chdir(t *testing.T) {
	t.Helper()
	rootOnce.Do(func() {
		projectRoot = getProjectRoot()
	})
	t.Chdir(projectRoot)
}

// requireFile fails the test if the required test file doesn't exist.
// We never skip tests - missing test data is a test failure.
func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Required test file not found: %s", path)
	}
}

// scanProject loads a config and parses its sources the way the CLI does.
func scanProject(t *testing.T, configFile string) (*config.Config, *parser.Parser, *parser.BatchResult) {
	t.Helper()
	requireFile(t, configFile)
	ctx := context.Background()

	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	paths, err := files.Collect(cfg.Sources, files.Options{
		Include: cfg.Include,
		Ignore:  cfg.Ignore,
		Cache:   files.NewIgnoreCache(),
	})
	if err != nil {
		t.Fatalf("Failed to collect files: %v", err)
	}

	popts, err := cfg.ParserOptions()
	if err != nil {
		t.Fatalf("Failed to resolve grammar: %v", err)
	}
	p, err := parser.New(popts)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	batch, err := p.ParseFiles(ctx, paths, parser.BatchOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Parsing failed: %v", err)
	}
	return cfg, p, batch
}

// runCLI executes the root command in process and returns stdout and the
// exit code a real run would report.
func runCLI(t *testing.T, args ...string) (string, int) {
	t.Helper()
	commands.ExitCode = 0
	t.Cleanup(func() { commands.ExitCode = 0 })

	root := cli.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-level", "error", "--no-color"}, args...))

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Logf("stderr: %s", stderr.String())
		return stdout.String() + "Error: " + err.Error(), 2
	}
	return stdout.String(), commands.ExitCode
}

// TestE2E_Project_Parse tests discovery and parsing of the fixture project.
// vendor/ is excluded by the project's .waymarkignore.
func TestE2E_Project_Parse(t *testing.T) {
	chdir(t)
	_, _, batch := scanProject(t, filepath.Join("testdata", "configs", "project.yaml"))

	if batch.Files != 3 {
		t.Errorf("Files = %d, want 3", batch.Files)
	}
	if len(batch.FileErrors) != 0 {
		t.Errorf("Unexpected file errors: %v", batch.FileErrors)
	}
	if got := len(batch.Result.Annotations); got != 7 {
		t.Errorf("Annotations = %d, want 7", got)
	}
	if len(batch.Result.Errors) != 1 {
		t.Fatalf("Parse errors = %d, want 1", len(batch.Result.Errors))
	}

	perr := batch.Result.Errors[0]
	if !strings.HasSuffix(filepath.ToSlash(perr.File), "scripts/build.py") || perr.Line != 2 {
		t.Errorf("Parse error at %s:%d, want scripts/build.py:2", perr.File, perr.Line)
	}

	for _, a := range batch.Result.Annotations {
		if strings.Contains(filepath.ToSlash(a.File), "vendor/") {
			t.Errorf("Vendored file was scanned: %s", a.File)
		}
	}
}

// TestE2E_Project_Search tests marker search with context lines.
func TestE2E_Project_Search(t *testing.T) {
	chdir(t)
	cfg, _, batch := scanProject(t, filepath.Join("testdata", "configs", "project.yaml"))

	results, err := query.Search(batch.Result.Annotations, query.Options{Markers: []string{"todo"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Results = %d, want 2", len(results))
	}

	if err := query.AttachContext(results, cfg.Search.ContextLines, query.NewLineLoader()); err != nil {
		t.Fatalf("AttachContext failed: %v", err)
	}
	for _, r := range results {
		if r.Context == nil {
			t.Errorf("Missing context for %s:%d", r.Annotation.File, r.Annotation.Line)
		}
	}

	// owner(@alice) is matched by its base name
	owned, err := query.Search(batch.Result.Annotations, query.Options{Markers: []string{"owner"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(owned) != 1 || owned[0].Annotation.ProseText() != "add request tracing" {
		t.Errorf("Unexpected owner results: %+v", owned)
	}
}

// TestE2E_Project_Inventory tests counting markers and files.
func TestE2E_Project_Inventory(t *testing.T) {
	chdir(t)
	_, _, batch := scanProject(t, filepath.Join("testdata", "configs", "project.yaml"))

	inv := query.Stats(query.Wrap(batch.Result.Annotations))

	if inv.Annotations != 7 {
		t.Errorf("Annotations = %d, want 7", inv.Annotations)
	}
	if len(inv.ByFile) != 3 {
		t.Errorf("Files = %d, want 3", len(inv.ByFile))
	}
	if len(inv.Markers) != 8 {
		t.Errorf("Markers = %d, want 8: %v", len(inv.Markers), inv.Markers)
	}
	if inv.Markers[0].Name != "todo" || inv.Markers[0].Count != 2 {
		t.Errorf("Top marker = %+v, want todo x2", inv.Markers[0])
	}
}

// TestE2E_Project_Lint tests the configured policy against the fixture project.
func TestE2E_Project_Lint(t *testing.T) {
	chdir(t)
	cfg, _, batch := scanProject(t, filepath.Join("testdata", "configs", "project.yaml"))

	now := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	linter, err := lint.New(cfg.Lint, lint.WithNow(now))
	if err != nil {
		t.Fatalf("Failed to create linter: %v", err)
	}
	result := linter.Lint(batch.Result.Annotations)

	if result.Passed {
		t.Error("Expected lint to fail")
	}
	byRule := result.CountByRule()
	if byRule[lint.RuleForbidden] != 1 {
		t.Errorf("Forbidden violations = %d, want 1", byRule[lint.RuleForbidden])
	}
	if byRule[lint.RuleOutdated] != 1 {
		t.Errorf("Outdated violations = %d, want 1", byRule[lint.RuleOutdated])
	}
	if len(result.Violations) != 2 {
		t.Errorf("Violations = %d, want 2", len(result.Violations))
	}
}

// TestE2E_Project_ReportFormats tests every output format over one report.
func TestE2E_Project_ReportFormats(t *testing.T) {
	chdir(t)
	cfg, p, batch := scanProject(t, filepath.Join("testdata", "configs", "project.yaml"))

	linter, err := lint.New(cfg.Lint)
	if err != nil {
		t.Fatalf("Failed to create linter: %v", err)
	}
	report := output.NewReport(output.KindLint, batch)
	report.Metadata.Grammar = p.Grammar()
	report.SetLint(linter.Lint(batch.Result.Annotations))

	for _, name := range output.Formats() {
		t.Run(name, func(t *testing.T) {
			formatter, err := output.New(name, output.FormatOptions{NoColor: true})
			if err != nil {
				t.Fatalf("output.New(%q) error = %v", name, err)
			}
			var buf bytes.Buffer
			if err := formatter.Format(context.Background(), report, &buf); err != nil {
				t.Fatalf("Format failed: %v", err)
			}
			if !strings.Contains(buf.String(), "temp") {
				t.Errorf("%s output missing the forbidden marker:\n%s", name, buf.String())
			}
		})
	}
}

// TestE2E_CLI_Lint tests the lint command end to end.
func TestE2E_CLI_Lint(t *testing.T) {
	chdir(t)

	out, code := runCLI(t, "--config", filepath.Join("testdata", "configs", "project.yaml"), "lint", "-o", "json")
	if code != 1 {
		t.Fatalf("Exit code = %d, want 1\n%s", code, out)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, out)
	}
	if report.Summary.Violations != 2 || report.Summary.ParseErrors != 1 {
		t.Errorf("Summary = %+v", report.Summary)
	}
	if report.Metadata.Grammar != parser.Waymark {
		t.Errorf("Grammar = %v, want waymark", report.Metadata.Grammar)
	}
}

// TestE2E_CLI_Lint_Clean tests a passing lint run.
func TestE2E_CLI_Lint_Clean(t *testing.T) {
	chdir(t)

	out, code := runCLI(t, "--config", filepath.Join("testdata", "configs", "clean.yaml"), "lint")
	if code != 0 {
		t.Fatalf("Exit code = %d, want 0\n%s", code, out)
	}
	if !strings.Contains(out, "PASSED") {
		t.Errorf("Expected PASSED in output:\n%s", out)
	}
}

// TestE2E_CLI_Search tests the search command with text output.
func TestE2E_CLI_Search(t *testing.T) {
	chdir(t)

	out, code := runCLI(t, "--config", filepath.Join("testdata", "configs", "project.yaml"),
		"search", "-m", "sec", "-C", "0")
	if code != 0 {
		t.Fatalf("Exit code = %d, want 0\n%s", code, out)
	}
	if !strings.Contains(out, "perf, sec sanitise before rendering") {
		t.Errorf("Unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Summary: 1 results from 7 annotations") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
}

// TestE2E_CLI_Audit tests the audit command with CSV output.
func TestE2E_CLI_Audit(t *testing.T) {
	chdir(t)

	out, code := runCLI(t, "--config", filepath.Join("testdata", "configs", "project.yaml"), "audit", "-o", "csv")
	if code != 0 {
		t.Fatalf("Exit code = %d, want 0\n%s", code, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Header, 8 markers, 3 files
	if len(lines) != 12 {
		t.Errorf("CSV lines = %d, want 12:\n%s", len(lines), out)
	}
}

// TestE2E_Detect_Legacy tests dialect detection on legacy annotations.
func TestE2E_Detect_Legacy(t *testing.T) {
	chdir(t)
	legacy := filepath.Join("testdata", "legacy", "notes.go")
	requireFile(t, legacy)

	d := detector.New()
	result, err := d.DetectFromFiles(context.Background(), []string{legacy})
	if err != nil {
		t.Fatalf("Detection failed: %v", err)
	}

	best := result.BestMatch()
	if best == nil {
		t.Fatal("No dialect detected")
	}
	if best.Format.Name != "ga" {
		t.Errorf("Detected %s, want ga", best.Format.Name)
	}
	if best.MatchCount != 3 || best.LegacyCount != 2 {
		t.Errorf("MatchCount = %d, LegacyCount = %d, want 3 and 2", best.MatchCount, best.LegacyCount)
	}
}

// TestE2E_Migrate_Legacy tests converting legacy annotations and parsing the
// result with the new grammar.
func TestE2E_Migrate_Legacy(t *testing.T) {
	chdir(t)
	legacy := filepath.Join("testdata", "legacy", "notes.go")
	requireFile(t, legacy)

	data, err := os.ReadFile(legacy)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	migrated, report := rewrite.MigrateContent(string(data), parser.GA, parser.Waymark)
	if report.Changed != 3 || len(report.Failed) != 0 {
		t.Fatalf("Report = %+v, want 3 changed", report)
	}

	p, err := parser.New(parser.Options{Grammar: parser.Waymark})
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	result, err := p.Parse(migrated, "notes.go")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Annotations) != 3 || len(result.Errors) != 0 {
		t.Fatalf("Parsed %d annotations and %d errors:\n%s", len(result.Annotations), len(result.Errors), migrated)
	}

	last := result.Annotations[2]
	if strings.Join(last.Markers, ",") != "fix,perf" || last.ProseText() != "tighten allocation" {
		t.Errorf("Unexpected annotation: %+v", last)
	}
}

// TestE2E_CLI_Migrate tests the migrate command on a copy of the legacy fixture.
func TestE2E_CLI_Migrate(t *testing.T) {
	chdir(t)
	data, err := os.ReadFile(filepath.Join("testdata", "legacy", "notes.go"))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	target := filepath.Join(t.TempDir(), "notes.go")
	if err := os.WriteFile(target, data, 0644); err != nil {
		t.Fatalf("Failed to copy fixture: %v", err)
	}

	out, code := runCLI(t, "migrate", "--from", "ga", "--to", "waymark", "--write", target)
	if code != 0 {
		t.Fatalf("Exit code = %d, want 0\n%s", code, out)
	}

	migrated, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("Failed to read migrated file: %v", err)
	}
	if strings.Contains(string(migrated), ":ga:") {
		t.Errorf("Legacy sigil left in file:\n%s", migrated)
	}
	if !strings.Contains(string(migrated), "// tldr ::: legacy entry point") {
		t.Errorf("Unexpected content:\n%s", migrated)
	}
}

// TestE2E_CLI_Diagnose tests diagnose on the fixture project config.
func TestE2E_CLI_Diagnose(t *testing.T) {
	chdir(t)

	out, code := runCLI(t, "diagnose", filepath.Join("testdata", "configs", "project.yaml"))
	if code != 0 {
		t.Fatalf("Exit code = %d, want 0\n%s", code, out)
	}

	checks := []string{
		"Configuration Diagnostics",
		"[PASS] Config File",
		"[PASS] Config Syntax",
		"[PASS] Grammar",
		"[PASS] Source: testdata/project",
		"[PASS] Dialect Detection",
		"Summary:",
	}
	for _, check := range checks {
		if !strings.Contains(out, check) {
			t.Errorf("Output missing %q\n%s", check, out)
		}
	}
}

// TestE2E_CLI_Diagnose_DialectMismatch tests that diagnose notices legacy
// annotations under a waymark grammar.
func TestE2E_CLI_Diagnose_DialectMismatch(t *testing.T) {
	chdir(t)
	configFile := filepath.Join(t.TempDir(), "mismatch.yaml")
	content := "sources:\n  - " + filepath.Join(projectRoot, "testdata", "legacy") + "\n"
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	out, _ := runCLI(t, "diagnose", configFile)
	if !strings.Contains(out, "[WARN] Dialect Detection") || !strings.Contains(out, "files mostly use ga") {
		t.Errorf("Expected dialect warning:\n%s", out)
	}
}

// TestE2E_CLI_Validate tests validate on each fixture config.
func TestE2E_CLI_Validate(t *testing.T) {
	chdir(t)

	for _, name := range []string{"project.yaml", "clean.yaml", "legacy.yaml"} {
		t.Run(name, func(t *testing.T) {
			out, code := runCLI(t, "validate", filepath.Join("testdata", "configs", name))
			if code != 0 || !strings.Contains(out, "Configuration valid!") {
				t.Errorf("validate %s: code %d\n%s", name, code, out)
			}
		})
	}
}

// ============================================================================
// Webhook tests
// ============================================================================

// writeWebhookConfig writes a config pointing the fixture project at url.
func writeWebhookConfig(t *testing.T, url, trigger string, forbid bool) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("sources:\n  - " + filepath.Join(projectRoot, "testdata", "project") + "\n")
	if forbid {
		b.WriteString("lint:\n  forbidden_markers: [temp]\n")
	}
	b.WriteString("webhooks:\n  - name: test\n    url: " + url + "\n    token: test-token-123\n    trigger: " + trigger + "\n")

	path := filepath.Join(t.TempDir(), "webhook.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// TestE2E_Webhook_SendOnIssues tests webhook fires when violations are found.
func TestE2E_Webhook_SendOnIssues(t *testing.T) {
	chdir(t)

	type capture struct {
		auth    string
		payload []byte
	}
	got := make(chan capture, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- capture{auth: r.Header.Get("Authorization"), payload: body}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"received"}`))
	}))
	defer server.Close()

	configFile := writeWebhookConfig(t, server.URL, "on_issues", true)
	_, code := runCLI(t, "--config", configFile, "lint", "-q")
	if code != 1 {
		t.Fatalf("Exit code = %d, want 1", code)
	}

	var received capture
	select {
	case received = <-got:
	default:
		t.Fatal("Webhook was not called")
	}

	// Verify bearer token
	if received.auth != "Bearer test-token-123" {
		t.Errorf("Expected Bearer token, got %s", received.auth)
	}

	// Verify payload is valid JSON with expected structure
	var payload output.Report
	if err := json.Unmarshal(received.payload, &payload); err != nil {
		t.Fatalf("Invalid JSON payload: %v", err)
	}
	if payload.Kind != output.KindLint || payload.Summary.Violations != 1 {
		t.Errorf("Unexpected payload summary: %+v", payload.Summary)
	}
}

// TestE2E_Webhook_NoSendOnSuccess tests webhook doesn't fire when lint passes
// (on_issues trigger).
func TestE2E_Webhook_NoSendOnSuccess(t *testing.T) {
	chdir(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	configFile := writeWebhookConfig(t, server.URL, "on_issues", false)
	if _, code := runCLI(t, "--config", configFile, "lint", "-q"); code != 0 {
		t.Fatalf("Exit code = %d, want 0", code)
	}
	if calls.Load() != 0 {
		t.Errorf("Webhook called %d time(s), want 0", calls.Load())
	}
}

// TestE2E_Webhook_AlwaysTrigger tests webhook fires after a passing run.
func TestE2E_Webhook_AlwaysTrigger(t *testing.T) {
	chdir(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	configFile := writeWebhookConfig(t, server.URL, "always", false)
	if _, code := runCLI(t, "--config", configFile, "lint", "-q"); code != 0 {
		t.Fatalf("Exit code = %d, want 0", code)
	}
	if calls.Load() != 1 {
		t.Errorf("Webhook called %d time(s), want 1", calls.Load())
	}
}

// TestE2E_Webhook_ServerError tests that a failing endpoint does not change
// the lint result.
func TestE2E_Webhook_ServerError(t *testing.T) {
	chdir(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	configFile := writeWebhookConfig(t, server.URL, "always", false)
	if _, code := runCLI(t, "--config", configFile, "lint", "-q"); code != 0 {
		t.Errorf("Exit code = %d, want 0", code)
	}
}

// TestE2E_Webhook_Client tests the library client directly against a report
// built from the fixture project.
func TestE2E_Webhook_Client(t *testing.T) {
	chdir(t)
	cfg, _, batch := scanProject(t, filepath.Join("testdata", "configs", "project.yaml"))

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	result, err := lint.Lint(batch.Result.Annotations, cfg.Lint)
	if err != nil {
		t.Fatalf("Lint failed: %v", err)
	}
	report := output.NewReport(output.KindLint, batch)
	report.SetLint(result)

	client := webhook.NewClient()
	resp := client.Send(context.Background(), report, webhook.SendOptions{URL: server.URL})
	if !resp.Success() {
		t.Fatalf("Webhook failed: %v", resp.Error)
	}
	if received.Load() != 1 {
		t.Errorf("Server received %d request(s), want 1", received.Load())
	}
}
