// Package ingest sends project documents to a generative-text provider and
// extracts the embedded task/epic payload. The primary provider is preferred;
// the fallback is used when the primary is unconfigured or fails.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"taskforge/api/internal/config"
)

var (
	ErrNoProviderConfigured = errors.New("no generative-text provider configured")
	ErrDocumentTooShort     = errors.New("document content is too short to parse")
	ErrInvalidKind          = errors.New("document kind must be PRD or TDD")
	// ErrMalformedResponse: the provider responded but no JSON object could
	// be located in the text. ErrInvalidJSON: an object was found but failed
	// to parse or validate. Neither is retried automatically since the
	// request itself succeeded.
	ErrMalformedResponse = errors.New("no JSON object found in provider response")
	ErrInvalidJSON       = errors.New("provider payload is not valid JSON")
)

type Service struct {
	primary  provider
	fallback provider
}

func New(cfg config.Config) *Service {
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	s := &Service{}
	if cfg.OpenRouterKey != "" {
		s.primary = &openRouterProvider{
			client: client,
			url:    cfg.OpenRouterURL,
			apiKey: cfg.OpenRouterKey,
			model:  cfg.OpenRouterModel,
		}
	}
	if cfg.AnthropicKey != "" {
		s.fallback = &anthropicProvider{
			client: client,
			url:    cfg.AnthropicURL,
			apiKey: cfg.AnthropicKey,
			model:  cfg.AnthropicModel,
		}
	}
	return s
}

// Configured reports whether at least one provider can serve requests.
func (s *Service) Configured() bool {
	return s.primary != nil || s.fallback != nil
}

// ParseDocument validates the document, completes the prompt against a
// provider and returns the raw epic/task payload plus the full response text.
func (s *Service) ParseDocument(ctx context.Context, content, kind string) (ParseResult, string, error) {
	if kind != KindPRD && kind != KindTDD {
		return ParseResult{}, "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if len(content) < minDocumentLength {
		return ParseResult{}, "", ErrDocumentTooShort
	}
	if !s.Configured() {
		return ParseResult{}, "", ErrNoProviderConfigured
	}

	prompt := buildPrompt(content, kind)
	raw, err := s.complete(ctx, prompt)
	if err != nil {
		return ParseResult{}, "", err
	}

	result, err := parseResponse(raw)
	if err != nil {
		return ParseResult{}, raw, err
	}
	return result, raw, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	if s.primary != nil {
		raw, err := s.primary.Complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		if s.fallback == nil {
			return "", err
		}
		log.Printf("ingest: %s failed, falling back to %s: %v", s.primary.Name(), s.fallback.Name(), err)
	}
	return s.fallback.Complete(ctx, prompt)
}
