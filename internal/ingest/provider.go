package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxTokens = 4096

// provider is one generative-text backend capable of completing a prompt.
type provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderRequestError reports a transport or HTTP failure talking to a
// provider. Status is zero for network errors.
type ProviderRequestError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderRequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderRequestError) Unwrap() error { return e.Err }

// doProviderRequest posts the payload and retries exactly once on a
// 5xx-class response. 4xx responses (bad credentials, bad request) are never
// retried.
func doProviderRequest(ctx context.Context, client *http.Client, name string, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr *ProviderRequestError
	for attempt := 0; attempt < 2; attempt++ {
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", name, err)
		}
		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, &ProviderRequestError{Provider: name, Err: err}
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, &ProviderRequestError{Provider: name, Err: readErr}
		}

		switch {
		case resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode >= 500:
			lastErr = &ProviderRequestError{Provider: name, Status: resp.StatusCode}
		default:
			return nil, &ProviderRequestError{Provider: name, Status: resp.StatusCode}
		}
	}
	return nil, lastErr
}

// openRouterProvider speaks the OpenAI-compatible chat completions protocol:
// bearer auth, messages in, choices[0].message.content out.
type openRouterProvider struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

func (p *openRouterProvider) Name() string { return "openrouter" }

func (p *openRouterProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal openrouter payload: %w", err)
	}

	body, err := doProviderRequest(ctx, p.client, p.Name(), func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	// An undecodable envelope means the provider sent junk, not that the
	// extracted payload is bad.
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrMalformedResponse
	}
	if parsed.Choices[0].Message.Content != "" {
		return parsed.Choices[0].Message.Content, nil
	}
	return parsed.Choices[0].Text, nil
}

// anthropicProvider speaks the Anthropic messages protocol: x-api-key auth,
// content blocks out.
type anthropicProvider struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":      p.model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic payload: %w", err)
	}

	body, err := doProviderRequest(ctx, p.client, p.Name(), func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", p.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Content) == 0 {
		return "", ErrMalformedResponse
	}
	return parsed.Content[0].Text, nil
}
