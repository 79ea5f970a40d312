package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"taskforge/api/internal/config"
)

const taskPayload = `{"epics":[{"name":"Auth","priority":"high"}],"tasks":[{"title":"Add login","epic":"Auth","estimatedComplexity":"easy","dependencies":[],"suggestedOrder":1}],"summary":{"totalTasks":1}}`

func openRouterBody(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, content)
}

func anthropicBody(content string) string {
	return fmt.Sprintf(`{"content":[{"text":%q}]}`, content)
}

func testConfig(openRouterURL, anthropicURL string) config.Config {
	cfg := config.Config{ProviderTimeout: 5 * time.Second}
	if openRouterURL != "" {
		cfg.OpenRouterKey = "test-key"
		cfg.OpenRouterURL = openRouterURL
		cfg.OpenRouterModel = "test-model"
	}
	if anthropicURL != "" {
		cfg.AnthropicKey = "test-key"
		cfg.AnthropicURL = anthropicURL
		cfg.AnthropicModel = "test-model"
	}
	return cfg
}

func longDocument() string {
	return strings.Repeat("The system shall allow users to log in. ", 10)
}

func TestParseDocumentExtractsWrappedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := "Here is the breakdown you asked for:\n" + taskPayload + "\nLet me know if you need changes."
		fmt.Fprint(w, openRouterBody(wrapped))
	}))
	defer srv.Close()

	svc := New(testConfig(srv.URL, ""))
	result, _, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Title != "Add login" {
		t.Errorf("unexpected tasks: %+v", result.Tasks)
	}
	if len(result.Epics) != 1 || result.Epics[0].Name != "Auth" {
		t.Errorf("unexpected epics: %+v", result.Epics)
	}
}

func TestParseDocumentFallsBackToSecondary(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer primary.Close()

	var fallbackHits int32
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fallbackHits, 1)
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		fmt.Fprint(w, anthropicBody(taskPayload))
	}))
	defer fallback.Close()

	svc := New(testConfig(primary.URL, fallback.URL))
	result, _, err := svc.ParseDocument(context.Background(), longDocument(), KindTDD)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if atomic.LoadInt32(&fallbackHits) != 1 {
		t.Errorf("expected one fallback request, got %d", fallbackHits)
	}
	if len(result.Tasks) != 1 {
		t.Errorf("expected 1 task, got %d", len(result.Tasks))
	}
}

func TestParseDocumentRetriesOnceOn5xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, openRouterBody(taskPayload))
	}))
	defer srv.Close()

	svc := New(testConfig(srv.URL, ""))
	_, _, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("expected 2 attempts, got %d", hits)
	}
}

func TestParseDocumentDoesNotRetry4xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := New(testConfig(srv.URL, ""))
	_, _, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	var reqErr *ProviderRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected ProviderRequestError, got %v", err)
	}
	if reqErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", reqErr.Status)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", hits)
	}
}

func TestParseDocumentRejectsShortContent(t *testing.T) {
	svc := New(testConfig("http://unused.invalid", ""))
	_, _, err := svc.ParseDocument(context.Background(), "too short", KindPRD)
	if !errors.Is(err, ErrDocumentTooShort) {
		t.Fatalf("expected ErrDocumentTooShort, got %v", err)
	}
}

func TestParseDocumentRejectsUnknownKind(t *testing.T) {
	svc := New(testConfig("http://unused.invalid", ""))
	_, _, err := svc.ParseDocument(context.Background(), longDocument(), "RFC")
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestParseDocumentNoProvider(t *testing.T) {
	svc := New(config.Config{ProviderTimeout: time.Second})
	_, _, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Fatalf("expected ErrNoProviderConfigured, got %v", err)
	}
}

func TestParseDocumentMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, openRouterBody("Sorry, I cannot produce a breakdown for this document."))
	}))
	defer srv.Close()

	svc := New(testConfig(srv.URL, ""))
	_, raw, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if raw == "" {
		t.Error("raw response should be returned for diagnostics")
	}
}

func TestParseDocumentUndecodableEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>gateway error</html>")
	}))
	defer srv.Close()

	// A 200 whose body is not the provider envelope is malformed, not an
	// invalid extracted payload.
	svc := New(testConfig(srv.URL, ""))
	_, _, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if errors.Is(err, ErrInvalidJSON) {
		t.Error("undecodable envelope must not map to ErrInvalidJSON")
	}
}

func TestParseDocumentRejectsUntitledTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, openRouterBody(`{"tasks":[{"title":""}]}`))
	}))
	defer srv.Close()

	svc := New(testConfig(srv.URL, ""))
	_, _, err := svc.ParseDocument(context.Background(), longDocument(), KindPRD)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestExtractJSONObjectSkipsBracesInStrings(t *testing.T) {
	text := "prefix {\"note\":\"a } inside a string\",\"n\":1} suffix"
	obj, ok := extractJSONObject(text)
	if !ok {
		t.Fatal("expected to find an object")
	}
	if obj != `{"note":"a } inside a string","n":1}` {
		t.Errorf("unexpected extraction: %s", obj)
	}
}
