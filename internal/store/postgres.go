package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const taskColumns = `id, project_id, title, description, assigned_to, status, priority, complexity, epic,
	dependencies, required_skills, estimated_hours, "order", source_file, metadata, comments_count, created_at`

// updatableTaskColumns limits UpdateTaskFields to plain scalar columns. Graph
// fields (dependencies, order) are only written during batch creation.
var updatableTaskColumns = map[string]struct{}{
	"title":           {},
	"description":     {},
	"status":          {},
	"priority":        {},
	"complexity":      {},
	"epic":            {},
	"assigned_to":     {},
	"estimated_hours": {},
	"source_file":     {},
}

func (s *PostgresStore) InsertEpic(ctx context.Context, epic Epic) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epics (id, project_id, name, description, priority)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, name) DO NOTHING
	`, epic.ID, epic.ProjectID, epic.Name, epic.Description, epic.Priority)
	if err != nil {
		return fmt.Errorf("insert epic: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEpics(ctx context.Context, projectID string) ([]Epic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, description, priority, created_at
		FROM epics
		WHERE project_id=$1
		ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer rows.Close()

	items := make([]Epic, 0)
	for rows.Next() {
		var item Epic
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Description, &item.Priority, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate epics: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) error {
	if err := insertTask(ctx, s.db, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// CreateTaskGraph persists a synthesized batch atomically: every epic and task
// commits together or the whole batch rolls back. Readers never observe a
// partial graph.
func (s *PostgresStore) CreateTaskGraph(ctx context.Context, epics []Epic, tasks []Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task graph tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, epic := range epics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO epics (id, project_id, name, description, priority)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (project_id, name) DO NOTHING
		`, epic.ID, epic.ProjectID, epic.Name, epic.Description, epic.Priority); err != nil {
			return fmt.Errorf("insert batch epic %q: %w", epic.Name, err)
		}
	}
	for _, task := range tasks {
		if err := insertTask(ctx, tx, task); err != nil {
			return fmt.Errorf("insert batch task %q: %w", task.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task graph: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTask(ctx context.Context, db execer, task Task) error {
	dependencies, err := marshalStrings(task.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	skills, err := marshalStrings(task.RequiredSkills)
	if err != nil {
		return fmt.Errorf("marshal required skills: %w", err)
	}
	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	status := task.Status
	if status == "" {
		status = StatusTodo
	}
	priority := task.Priority
	if priority == "" {
		priority = "medium"
	}
	complexity := task.Complexity
	if complexity == "" {
		complexity = "medium"
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, assigned_to, status, priority, complexity, epic,
			dependencies, required_skills, estimated_hours, "order", source_file, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13, $14, $15::jsonb)
	`, task.ID, task.ProjectID, task.Title, task.Description, task.AssignedTo, status, priority, complexity,
		task.Epic, dependencies, skills, task.EstimatedHours, task.Order, task.SourceFile, string(metadata))
	return err
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, taskID)
	return scanTask(row)
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)
	appendCondition := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	appendCondition("project_id", filter.ProjectID)
	appendCondition("epic", filter.Epic)
	appendCondition("status", filter.Status)
	appendCondition("assigned_to", filter.AssignedTo)

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	// The cross-project "my tasks" view sorts newest-first; everything else
	// follows the graph order.
	if filter.AssignedTo != "" && filter.ProjectID == "" {
		query += ` ORDER BY created_at DESC`
	} else {
		query += ` ORDER BY "order" ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateTaskFields(ctx context.Context, taskID string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, column := range sortedKeys(fields) {
		if _, ok := updatableTaskColumns[column]; !ok {
			return false, fmt.Errorf("field %q is not updatable", column)
		}
		args = append(args, fields[column])
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	args = append(args, taskID)

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id=$%d`, strings.Join(setClauses, ", "), len(args))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID, status string) (bool, error) {
	return s.UpdateTaskFields(ctx, taskID, map[string]any{"status": status})
}

func (s *PostgresStore) AssignTask(ctx context.Context, taskID, userID string) (bool, error) {
	return s.UpdateTaskFields(ctx, taskID, map[string]any{"assigned_to": userID})
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetCommentsCount(ctx context.Context, taskID string, count int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET comments_count=$2 WHERE id=$1`, taskID, count)
	if err != nil {
		return fmt.Errorf("set comments count: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertActivity(ctx context.Context, record ActivityRecord) (ActivityRecord, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO task_activity (task_id, action_type, old_value, new_value, field_name, user_id, user_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, record.TaskID, record.ActionType, record.OldValue, record.NewValue, record.FieldName, record.UserID, record.UserName).
		Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("insert activity: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, taskID string) ([]ActivityRecord, error) {
	return s.queryActivity(ctx, `
		SELECT id, task_id, action_type, old_value, new_value, field_name, user_id, user_name, created_at
		FROM task_activity
		WHERE task_id=$1
		ORDER BY created_at DESC
	`, taskID)
}

func (s *PostgresStore) ListActivityByType(ctx context.Context, taskID, actionType string) ([]ActivityRecord, error) {
	return s.queryActivity(ctx, `
		SELECT id, task_id, action_type, old_value, new_value, field_name, user_id, user_name, created_at
		FROM task_activity
		WHERE task_id=$1 AND action_type=$2
		ORDER BY created_at DESC
	`, taskID, actionType)
}

func (s *PostgresStore) ListActivityByUser(ctx context.Context, taskID, userID string) ([]ActivityRecord, error) {
	return s.queryActivity(ctx, `
		SELECT id, task_id, action_type, old_value, new_value, field_name, user_id, user_name, created_at
		FROM task_activity
		WHERE task_id=$1 AND user_id=$2
		ORDER BY created_at DESC
	`, taskID, userID)
}

// ListRecentActivity returns a task's ledger rows at or after the cutoff,
// newest first. Feeds the activity summary rollup.
func (s *PostgresStore) ListRecentActivity(ctx context.Context, taskID string, since time.Time) ([]ActivityRecord, error) {
	return s.queryActivity(ctx, `
		SELECT id, task_id, action_type, old_value, new_value, field_name, user_id, user_name, created_at
		FROM task_activity
		WHERE task_id=$1 AND created_at >= $2
		ORDER BY created_at DESC
	`, taskID, since)
}

// FieldTimeline returns the change history of a single task field, newest first.
func (s *PostgresStore) FieldTimeline(ctx context.Context, taskID, fieldName string) ([]ActivityRecord, error) {
	return s.queryActivity(ctx, `
		SELECT id, task_id, action_type, old_value, new_value, field_name, user_id, user_name, created_at
		FROM task_activity
		WHERE task_id=$1 AND field_name=$2
		ORDER BY created_at DESC
	`, taskID, fieldName)
}

func (s *PostgresStore) queryActivity(ctx context.Context, query string, args ...any) ([]ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityRecord, 0)
	for rows.Next() {
		var item ActivityRecord
		if err := rows.Scan(
			&item.ID,
			&item.TaskID,
			&item.ActionType,
			&item.OldValue,
			&item.NewValue,
			&item.FieldName,
			&item.UserID,
			&item.UserName,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, user_id, user_name, user_email, content)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, comment.ID, comment.TaskID, comment.UserID, comment.UserName, comment.UserEmail, comment.Content)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var item Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, user_id, user_name, user_email, content, is_edited, created_at, updated_at
		FROM task_comments
		WHERE id=$1
	`, commentID).Scan(
		&item.ID,
		&item.TaskID,
		&item.UserID,
		&item.UserName,
		&item.UserEmail,
		&item.Content,
		&item.IsEdited,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Comment{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_comments
		SET content=$2, is_edited=TRUE, updated_at=NOW()
		WHERE id=$1
	`, commentID, content)
	if err != nil {
		return false, fmt.Errorf("update comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, user_name, user_email, content, is_edited, created_at, updated_at
		FROM task_comments
		WHERE task_id=$1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(
			&item.ID,
			&item.TaskID,
			&item.UserID,
			&item.UserName,
			&item.UserEmail,
			&item.Content,
			&item.IsEdited,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountComments(ctx context.Context, taskID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_comments WHERE task_id=$1`, taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (Task, error) {
	var task Task
	var dependencies, skills, metadata []byte
	if err := scanner.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.AssignedTo,
		&task.Status,
		&task.Priority,
		&task.Complexity,
		&task.Epic,
		&dependencies,
		&skills,
		&task.EstimatedHours,
		&task.Order,
		&task.SourceFile,
		&metadata,
		&task.CommentsCount,
		&task.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, err
		}
		return Task{}, fmt.Errorf("scan task: %w", err)
	}

	var err error
	if task.Dependencies, err = unmarshalStrings(dependencies); err != nil {
		return Task{}, fmt.Errorf("decode dependencies: %w", err)
	}
	if task.RequiredSkills, err = unmarshalStrings(skills); err != nil {
		return Task{}, fmt.Errorf("decode required skills: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &task.Metadata); err != nil {
			return Task{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return task, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	if values == nil {
		return []string{}, nil
	}
	return values, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	// Deterministic SET clause ordering keeps queries stable across runs.
	sort.Strings(keys)
	return keys
}
