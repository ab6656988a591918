package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/parser"
)

func TestCheckConfigExists_NotFound(t *testing.T) {
	result := checkConfigExists("/nonexistent/config.yaml")

	if result.Status != "error" {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "not found") {
		t.Errorf("Expected 'not found' in message, got: %s", result.Message)
	}
}

func TestCheckConfigExists_Empty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")

	// Create empty file
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	result := checkConfigExists(configPath)

	if result.Status != "warning" {
		t.Errorf("Expected warning status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "empty") {
		t.Errorf("Expected 'empty' in message, got: %s", result.Message)
	}
}

func TestCheckConfigExists_Directory(t *testing.T) {
	result := checkConfigExists(t.TempDir())

	if result.Status != "error" {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "directory") {
		t.Errorf("Expected 'directory' in message, got: %s", result.Message)
	}
}

func TestCheckConfigExists_Defaults(t *testing.T) {
	setupCommandTest(t)

	result := checkConfigExists("")

	if result.Status != "ok" {
		t.Errorf("Expected ok status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "built-in defaults") {
		t.Errorf("Unexpected message: %s", result.Message)
	}
}

func TestCheckConfigParseable_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("grammar: [unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	cfg, result := checkConfigParseable(context.Background(), configPath)

	if cfg != nil {
		t.Error("Expected nil config")
	}
	if result.Status != "error" {
		t.Errorf("Expected error status, got %s", result.Status)
	}
}

func TestCheckGrammar(t *testing.T) {
	tests := []struct {
		name       string
		grammar    config.GrammarConfig
		wantStatus string
		wantMsg    string
	}{
		{"default", config.GrammarConfig{}, "ok", "Dialect waymark"},
		{"dialect", config.GrammarConfig{Dialect: "magic"}, "ok", "Dialect magic: :M: (prefix)"},
		{"custom", config.GrammarConfig{Sigil: "@@", Style: parser.StylePrefix}, "ok", "Custom grammar: @@ (prefix)"},
		{"unknown", config.GrammarConfig{Dialect: "nope"}, "error", "does not resolve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, result := checkGrammar(&config.Config{Grammar: tt.grammar})
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", result.Status, tt.wantStatus)
			}
			if !strings.Contains(result.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", result.Message, tt.wantMsg)
			}
		})
	}
}

func TestCheckSources(t *testing.T) {
	setupCommandTest(t)
	writeSources(t)

	cfg := config.DefaultConfig()
	cfg.Sources = []string{"src", "missing/*.go"}

	results, paths := checkSources(cfg)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Status != "ok" || results[0].Message != "Matches 2 file(s)" {
		t.Errorf("Unexpected src result: %+v", results[0])
	}
	if results[1].Status != "warning" {
		t.Errorf("Expected warning for unmatched glob, got %s", results[1].Status)
	}
	if len(paths) != 2 {
		t.Errorf("Expected 2 paths, got %v", paths)
	}
}

func TestCheckSources_NoneFound(t *testing.T) {
	setupCommandTest(t)

	cfg := config.DefaultConfig()
	cfg.Sources = []string{"nothing.go"}

	results, paths := checkSources(cfg)

	if len(paths) != 0 {
		t.Errorf("Expected no paths, got %v", paths)
	}
	last := results[len(results)-1]
	if last.Check != "Files Summary" || last.Status != "error" {
		t.Errorf("Expected files summary error, got %+v", last)
	}
}

func TestCheckDialect_Mismatch(t *testing.T) {
	setupCommandTest(t)
	writeTestFile(t, "legacy.go", "// :A: todo fix it\n// :A: note entry\n")

	result := checkDialect(context.Background(), parser.Waymark, []string{"legacy.go"}, &DiagnoseOptions{})

	if result.Status != "warning" {
		t.Errorf("Expected warning status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "files mostly use anchor") {
		t.Errorf("Unexpected message: %s", result.Message)
	}
	found := false
	for _, s := range result.Suggests {
		if strings.Contains(s, "waymark migrate --from anchor") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected migrate suggestion, got %v", result.Suggests)
	}
}

func TestCheckDialect_Match(t *testing.T) {
	setupCommandTest(t)
	writeSources(t)

	result := checkDialect(context.Background(), parser.Waymark, []string{"src/main.go", "src/util.py"}, &DiagnoseOptions{})

	if result.Status != "ok" {
		t.Errorf("Expected ok status, got %s: %s", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "100% well formed") {
		t.Errorf("Unexpected message: %s", result.Message)
	}
}

func TestCheckDialect_NoAnnotations(t *testing.T) {
	setupCommandTest(t)
	writeTestFile(t, "plain.go", "package main\n")

	result := checkDialect(context.Background(), parser.Waymark, []string{"plain.go"}, &DiagnoseOptions{})

	if result.Status != "warning" {
		t.Errorf("Expected warning status, got %s", result.Status)
	}
}

func TestCheckLintPolicy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lint = lint.Config{ForbiddenMarkers: []string{"temp"}}

	result := checkLintPolicy(cfg)
	if result.Status != "ok" {
		t.Errorf("Expected ok status, got %s: %s", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "forbidden") {
		t.Errorf("Expected forbidden rule listed, got: %s", result.Message)
	}
}

func TestCheckLintPolicy_Conflict(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lint = lint.Config{
		ForbiddenMarkers: []string{"temp"},
		AllowedMarkers:   []string{"todo", "temp"},
	}

	result := checkLintPolicy(cfg)
	if result.Status != "warning" {
		t.Errorf("Expected warning status, got %s", result.Status)
	}
	if len(result.Details) != 1 || !strings.Contains(result.Details[0], `"temp"`) {
		t.Errorf("Unexpected details: %v", result.Details)
	}
}

func TestCheckLintPolicy_Invalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lint = lint.Config{MaxAgeDays: -1}

	result := checkLintPolicy(cfg)
	if result.Status != "error" {
		t.Errorf("Expected error status, got %s", result.Status)
	}
}

func TestCheckWebhooks(t *testing.T) {
	tests := []struct {
		name       string
		webhook    config.WebhookConfig
		wantStatus string
	}{
		{
			name:       "valid https",
			webhook:    config.WebhookConfig{URL: "https://example.com/hook", Trigger: config.WebhookTriggerOnIssues},
			wantStatus: "ok",
		},
		{
			name:       "local http",
			webhook:    config.WebhookConfig{URL: "http://localhost:8080/hook", Trigger: config.WebhookTriggerAlways},
			wantStatus: "ok",
		},
		{
			name:       "remote http",
			webhook:    config.WebhookConfig{URL: "http://example.com/hook", Trigger: config.WebhookTriggerOnIssues},
			wantStatus: "warning",
		},
		{
			name:       "unresolved token",
			webhook:    config.WebhookConfig{URL: "https://example.com/hook", Token: "${MISSING_TOKEN}"},
			wantStatus: "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Webhooks: []config.WebhookConfig{tt.webhook}}
			results := checkWebhooks(cfg, &DiagnoseOptions{})
			if len(results) != 1 {
				t.Fatalf("Expected 1 result, got %d", len(results))
			}
			if results[0].Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s (%v)", results[0].Status, tt.wantStatus, results[0].Details)
			}
		})
	}
}

func TestCheckWebhooks_NoneConfigured(t *testing.T) {
	cfg := &config.Config{}

	if results := checkWebhooks(cfg, &DiagnoseOptions{}); len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
	if results := checkWebhooks(cfg, &DiagnoseOptions{Verbose: true}); len(results) != 1 {
		t.Errorf("Expected 1 verbose result, got %d", len(results))
	}
}

func TestPrintDiagnostics(t *testing.T) {
	results := []DiagnosticResult{
		{Check: "Config File", Status: "ok", Message: "Found", Details: []string{"hidden"}},
		{Check: "Grammar", Status: "warning", Message: "Odd", Details: []string{"shown"}},
		{Check: "Sources", Status: "error", Message: "Missing", Suggests: []string{"Add one"}},
	}

	var buf bytes.Buffer
	errCount := printDiagnostics(&buf, results, &DiagnoseOptions{})
	out := buf.String()

	if errCount != 1 {
		t.Errorf("printDiagnostics() = %d, want 1", errCount)
	}
	checks := []string{
		"=== Waymark Configuration Diagnostics ===",
		"[PASS] Config File",
		"[WARN] Grammar",
		"      - shown",
		"[FAIL] Sources",
		"      Hint: Add one",
		"Summary: 1 passed, 1 warnings, 1 errors",
		"Fix the errors above",
	}
	for _, check := range checks {
		if !strings.Contains(out, check) {
			t.Errorf("Output missing %q\n%s", check, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("Details of passing checks should only show with --verbose")
	}
}

func TestRunDiagnose_Healthy(t *testing.T) {
	setupCommandTest(t)
	writeSources(t)
	writeTestFile(t, config.DefaultConfigFile, "sources:\n  - src\n")

	stdout, _, err := execute(NewDiagnoseCommand())
	if err != nil {
		t.Fatalf("diagnose failed: %v", err)
	}
	if ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0\n%s", ExitCode, stdout)
	}
	checks := []string{
		"[PASS] Config File",
		"[PASS] Config Syntax",
		"[PASS] Source: src",
		"[PASS] Dialect Detection",
		"Configuration looks good!",
	}
	for _, check := range checks {
		if !strings.Contains(stdout, check) {
			t.Errorf("Output missing %q\n%s", check, stdout)
		}
	}
}

func TestRunDiagnose_MissingConfig(t *testing.T) {
	setupCommandTest(t)

	stdout, _, err := execute(NewDiagnoseCommand(), "nope.yaml")
	if err != nil {
		t.Fatalf("diagnose failed: %v", err)
	}
	if ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", ExitCode)
	}
	if !strings.Contains(stdout, "[FAIL] Config File") {
		t.Errorf("Unexpected output:\n%s", stdout)
	}
	if strings.Contains(stdout, "Config Syntax") {
		t.Error("Diagnosis should stop after a missing config")
	}
}
