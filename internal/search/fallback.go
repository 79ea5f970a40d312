package search

import (
	"database/sql"
	"fmt"
	"unicode/utf8"
)

const snippetLength = 160

// SQLFallback serves searches straight from Postgres when Meilisearch is
// down. Plain ILIKE matching, no highlighting, no ranking beyond task order.
type SQLFallback struct {
	db *sql.DB
}

func NewSQLFallback(db *sql.DB) *SQLFallback {
	return &SQLFallback{db: db}
}

func (f *SQLFallback) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	where := `(title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')`
	args := []any{q.Text}
	if q.ProjectID != "" {
		args = append(args, q.ProjectID)
		where += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if q.Epic != "" {
		args = append(args, q.Epic)
		where += fmt.Sprintf(" AND epic = $%d", len(args))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks WHERE ` + where
	if err := f.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	args = append(args, limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT id, project_id, title, description, epic, status, priority
		FROM tasks
		WHERE %s
		ORDER BY "order" ASC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := f.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var description string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Title, &description, &r.Epic, &r.Status, &r.Priority); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		r.Snippet = truncate(description, snippetLength)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// truncate cuts on a rune boundary so a multi-byte character straddling the
// limit never yields an invalid snippet.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
