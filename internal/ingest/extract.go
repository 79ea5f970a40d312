package ingest

import (
	"encoding/json"
	"fmt"

	"taskforge/api/internal/graph"
)

// ParseResult is the raw, unvalidated payload the provider embeds in its
// response. Graph invariants (cycles, dangling titles) are not checked here.
type ParseResult struct {
	Epics   []graph.RawEpic  `json:"epics"`
	Tasks   []graph.RawTask  `json:"tasks"`
	Summary *DocumentSummary `json:"summary"`
}

type DocumentSummary struct {
	TotalTasks        int      `json:"totalTasks"`
	EstimatedDuration string   `json:"estimatedDuration"`
	RequiredTeamSize  string   `json:"requiredTeamSize"`
	KeyRisks          []string `json:"keyRisks"`
}

// extractJSONObject returns the first brace-matched JSON object found
// anywhere in the text. Providers wrap payloads in prose, so the scan is
// string- and escape-aware rather than a naive bracket count.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseResponse extracts the embedded object and validates it against the
// expected schema. Payloads that fail validation are rejected outright, never
// best-effort accepted.
func parseResponse(raw string) (ParseResult, error) {
	candidate, found := extractJSONObject(raw)
	if !found {
		return ParseResult{}, ErrMalformedResponse
	}

	var result ParseResult
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return ParseResult{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if result.Tasks == nil {
		return ParseResult{}, fmt.Errorf("%w: missing tasks array", ErrInvalidJSON)
	}
	for i, task := range result.Tasks {
		if task.Title == "" {
			return ParseResult{}, fmt.Errorf("%w: task %d has no title", ErrInvalidJSON, i)
		}
	}
	for i, epic := range result.Epics {
		if epic.Name == "" {
			return ParseResult{}, fmt.Errorf("%w: epic %d has no name", ErrInvalidJSON, i)
		}
	}
	if result.Epics == nil {
		result.Epics = []graph.RawEpic{}
	}
	return result, nil
}
