package publishers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samvad-hq/samvad-user-fetcher/internal/domain"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/result"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadRegistryEnabledFilter(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: HTTP
    http:
      url: " https://example.com/2 "
      headers:
        X-Empty: ""
  - id: topic
    type: sns
    sns:
      topic_arn: arn:aws:sns:eu-west-1:000000000000:users
      region: eu-west-1
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "http2" || enabled[1].ID != "topic" {
		t.Fatalf("expected http2 and topic enabled, got %#v", enabled)
	}

	h, ok := reg.ByID("http2")
	if !ok {
		t.Fatalf("ByID(http2) not found")
	}
	if h.Type != TypeHTTP || h.HTTP.URL != "https://example.com/2" || h.HTTP.Method != "POST" || h.HTTP.TimeoutSeconds != 5 {
		t.Fatalf("http2 not sanitized: %+v / %+v", h, h.HTTP)
	}
	if h.HTTP.Headers != nil {
		t.Fatalf("empty headers should be dropped, got %v", h.HTTP.Headers)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers":[{"id":"ps","type":"gcp_pubsub","gcp_pubsub":{"project_id":"p","topic":"t"}}]}`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 1 || reg.All()[0].GCPPubSub.Topic != "t" {
		t.Fatalf("unexpected registry %#v", reg.All())
	}
}

func TestLoadRegistryRejectsDuplicatesAndBadFiles(t *testing.T) {
	dup := writeFile(t, "dup.yaml", `
publishers:
  - {id: a, type: http, http: {url: "https://a"}}
  - {id: a, type: http, http: {url: "https://b"}}
`)
	if _, err := LoadRegistry(dup); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if _, err := LoadRegistry(writeFile(t, "pubs.toml", "x = 1")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := LoadRegistry(""); err == nil {
		t.Fatalf("expected empty path error")
	}
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	bad := []PublisherConfig{
		{Type: TypeHTTP},
		{ID: "t"},
		{ID: "h", Type: TypeHTTP},
		{ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "q"}},
		{ID: "s", Type: TypeSNS, SNS: &SNSPublisherConfig{Region: "eu-west-1"}},
		{ID: "g", Type: TypeGCPPubSub, GCPPubSub: &GCPPubSubPublisherConfig{ProjectID: "p"}},
	}
	for _, cfg := range bad {
		if err := validatePublisherConfig(cfg); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	pubs, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Type() != TypeHTTP {
		t.Fatalf("unexpected publishers %#v", pubs)
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	if _, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{{ID: "k", Type: "kafka"}}, nil); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestNewEventFromResult(t *testing.T) {
	ok := NewEvent("https://x", result.Success([]domain.User{{ID: 1}, {ID: 2}}), []int{2})
	if ok.Outcome != OutcomeSuccess || len(ok.Users) != 2 || ok.Message != "" || len(ok.NewUserIDs) != 1 {
		t.Fatalf("unexpected success event %+v", ok)
	}

	failed := NewEvent("https://x", result.Error[[]domain.User]("No internet connection"), []int{9})
	if failed.Outcome != OutcomeError || failed.Message != "No internet connection" || failed.Users != nil || failed.NewUserIDs != nil {
		t.Fatalf("unexpected error event %+v", failed)
	}
	if failed.CollectedAt.IsZero() {
		t.Fatalf("CollectedAt not set")
	}
}
