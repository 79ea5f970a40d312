// Package search provides task search over Meilisearch with a SQL fallback.
package search

// Query narrows a task search. Empty filters are ignored.
type Query struct {
	Text      string
	ProjectID string
	Epic      string
	Status    string
	Limit     int
	Offset    int
}

// TaskRecord is the indexed shape of a task.
type TaskRecord struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Epic        string `json:"epic"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assignedTo"`
}

// Result is one search hit. Title and Snippet may carry <mark> highlight tags
// when served by Meilisearch.
type Result struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Epic      string `json:"epic"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
}

// Response is the search API payload.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
