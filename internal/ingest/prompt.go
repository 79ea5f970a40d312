package ingest

import "fmt"

// Document kinds accepted for parsing.
const (
	KindPRD = "PRD"
	KindTDD = "TDD"
)

// minDocumentLength rejects documents too small to yield a useful breakdown.
const minDocumentLength = 100

func kindLabel(kind string) string {
	if kind == KindTDD {
		return "Technical Design Document"
	}
	return "Product Requirements Document"
}

// buildPrompt produces the fixed instruction asking the provider to emit a
// JSON object with epics, tasks and a summary. The response contract is what
// extract.go and the graph builder consume.
func buildPrompt(content, kind string) string {
	return fmt.Sprintf(`
You are an expert software engineer. Analyze the following %s (%s) and break it down into a structured task graph.

For each task, provide:
- title: Clear, actionable task title
- description: Detailed description
- epic: Which epic this belongs to (e.g., "Authentication", "Dashboard", "API")
- type: 'frontend' | 'backend' | 'devops' | 'database' | 'testing'
- priority: 'critical' | 'high' | 'medium' | 'low'
- estimatedComplexity: 'trivial' | 'easy' | 'medium' | 'hard' | 'complex'
- dependencies: array of task titles this depends on
- requiredSkills: array of skill tags (e.g., ['react', 'typescript', 'api'])
- suggestedOrder: numerical order for execution

Return as valid JSON with structure:
{
  "epics": [
    {
      "name": "Epic Name",
      "description": "...",
      "priority": "high"
    }
  ],
  "tasks": [
    {
      "title": "Task Title",
      "description": "...",
      "epic": "Epic Name",
      "type": "frontend",
      "priority": "high",
      "estimatedComplexity": "medium",
      "dependencies": [],
      "requiredSkills": ["react"],
      "suggestedOrder": 1
    }
  ],
  "summary": {
    "totalTasks": 0,
    "estimatedDuration": "weeks",
    "requiredTeamSize": "X developers",
    "keyRisks": []
  }
}

Document to parse:
%s`, kind, kindLabel(kind), content)
}
