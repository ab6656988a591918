package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/parser"
)

func newTestReport() *output.Report {
	report := output.NewReport(output.KindLint, &parser.BatchResult{
		Files:  2,
		Result: &parser.ParseResult{Annotations: []parser.Annotation{{Line: 1, Markers: []string{"temp"}}}},
	})
	report.SetLint(&lint.Result{
		Violations: []lint.Violation{{
			Rule:    lint.RuleForbidden,
			Marker:  "temp",
			Message: `Marker "temp" is forbidden`,
		}},
	})
	report.Metadata.ConfigFile = "test.yaml"
	report.Metadata.Sources = []string{"."}
	report.Metadata.Duration = time.Second
	return report
}

func TestClient_Send_Success(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	var receivedAuth string
	var receivedUA string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")
		receivedUA = r.Header.Get("User-Agent")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL: server.URL,
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	if resp.Body != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}

	if receivedAuth != "" {
		t.Errorf("expected no auth header, got %s", receivedAuth)
	}

	if receivedUA != "waymark-webhook" {
		t.Errorf("expected waymark-webhook user agent, got %s", receivedUA)
	}

	// Verify payload is valid JSON containing expected fields
	var payload map[string]interface{}
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Errorf("failed to parse received payload: %v", err)
	}

	if _, ok := payload["summary"]; !ok {
		t.Error("payload missing summary field")
	}
	if payload["kind"] != "lint" {
		t.Errorf("payload kind = %v, want lint", payload["kind"])
	}
}

func TestClient_Send_WithBearerToken(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL:   server.URL,
		Token: "secret-token-123",
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}

	if receivedAuth != "Bearer secret-token-123" {
		t.Errorf("expected Bearer token, got %s", receivedAuth)
	}
}

func TestClient_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
	}))
	defer server.Close()

	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL: server.URL,
	})

	if resp.Success() {
		t.Error("expected failure, got success")
	}

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	if resp.Success() {
		t.Error("expected failure due to timeout")
	}

	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestClient_Send_InvalidURL(t *testing.T) {
	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL: "://invalid-url",
	})

	if resp.Success() {
		t.Error("expected failure for invalid URL")
	}

	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL:     "http://127.0.0.1:59999", // Unlikely to be listening
		Timeout: 100 * time.Millisecond,
	})

	if resp.Success() {
		t.Error("expected failure for connection refused")
	}

	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		name        string
		resp        Response
		wantSuccess bool
	}{
		{"200 OK", Response{StatusCode: 200}, true},
		{"201 Created", Response{StatusCode: 201}, true},
		{"204 No Content", Response{StatusCode: 204}, true},
		{"400 Bad Request", Response{StatusCode: 400}, false},
		{"500 Server Error", Response{StatusCode: 500}, false},
		{"With Error", Response{StatusCode: 200, Error: io.EOF}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Success(); got != tt.wantSuccess {
				t.Errorf("Success() = %v, want %v", got, tt.wantSuccess)
			}
		})
	}
}

func TestShouldFire(t *testing.T) {
	tests := []struct {
		trigger   config.WebhookTrigger
		hasIssues bool
		want      bool
	}{
		{config.WebhookTriggerAlways, false, true},
		{config.WebhookTriggerAlways, true, true},
		{config.WebhookTriggerNever, true, false},
		{config.WebhookTriggerOnIssues, true, true},
		{config.WebhookTriggerOnIssues, false, false},
		{"", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		if got := ShouldFire(tt.trigger, tt.hasIssues); got != tt.want {
			t.Errorf("ShouldFire(%q, %v) = %v, want %v", tt.trigger, tt.hasIssues, got, tt.want)
		}
	}
}

func TestClient_Dispatch(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	core, logs := observer.New(zap.InfoLevel)
	client := NewClient(WithLogger(zap.New(core)))

	hooks := []config.WebhookConfig{
		{Name: "issues", URL: server.URL, Trigger: config.WebhookTriggerOnIssues},
		{Name: "never", URL: server.URL, Trigger: config.WebhookTriggerNever},
		{URL: failing.URL, Trigger: config.WebhookTriggerAlways},
	}

	responses := client.Dispatch(context.Background(), hooks, newTestReport())

	if len(responses) != 2 {
		t.Fatalf("Dispatch() sent %d, want 2", len(responses))
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	if !responses[0].Success() || responses[0].Name != "issues" {
		t.Errorf("responses[0] = %+v", responses[0])
	}
	if responses[1].Success() || responses[1].Name != failing.URL {
		t.Errorf("responses[1] = %+v", responses[1])
	}

	if logs.FilterMessage("Webhook sent").Len() != 1 {
		t.Errorf("expected one sent log, got %d", logs.FilterMessage("Webhook sent").Len())
	}
	if logs.FilterMessage("Webhook failed").Len() != 1 {
		t.Errorf("expected one failed log, got %d", logs.FilterMessage("Webhook failed").Len())
	}
}

func TestClient_Dispatch_NoIssues(t *testing.T) {
	client := NewClient()
	report := output.NewReport(output.KindLint, nil)

	hooks := []config.WebhookConfig{{URL: "http://127.0.0.1:59999", Trigger: config.WebhookTriggerOnIssues}}
	if got := client.Dispatch(context.Background(), hooks, report); len(got) != 0 {
		t.Errorf("Dispatch() sent %d, want 0", len(got))
	}
}
