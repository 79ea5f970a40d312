package store

import "time"

// Task statuses. "blocked" is reachable from todo and in_progress only when
// strict transitions are enabled; the store itself never validates.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusDone       = "done"
	StatusBlocked    = "blocked"
)

type Epic struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	Priority    string
	CreatedAt   time.Time
}

type TaskMetadata struct {
	Type           string `json:"type"`
	SuggestedOrder int    `json:"suggestedOrder"`
}

type Task struct {
	ID             string
	ProjectID      string
	Title          string
	Description    string
	AssignedTo     string
	Status         string
	Priority       string
	Complexity     string
	Epic           string
	Dependencies   []string
	RequiredSkills []string
	EstimatedHours int
	Order          int
	SourceFile     string
	Metadata       TaskMetadata
	CommentsCount  int
	CreatedAt      time.Time
}

// Activity action types. Anything else renders through the generic template.
const (
	ActionCreated            = "created"
	ActionStatusChanged      = "status_changed"
	ActionTitleChanged       = "title_changed"
	ActionDescriptionChanged = "description_changed"
	ActionAssigned           = "assigned"
	ActionCommented          = "commented"
)

// ActivityRecord is append-only; rows are never updated or deleted.
type ActivityRecord struct {
	ID         int64
	TaskID     string
	ActionType string
	OldValue   string
	NewValue   string
	FieldName  string
	UserID     string
	UserName   string
	CreatedAt  time.Time
}

type Comment struct {
	ID        string
	TaskID    string
	UserID    string
	UserName  string
	UserEmail string
	Content   string
	IsEdited  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskFilter narrows ListTasks. Zero values are ignored. Results are ordered
// by "order" ascending, except the assignee-only filter which orders by
// created_at descending (the cross-project "my tasks" view).
type TaskFilter struct {
	ProjectID  string
	Epic       string
	Status     string
	AssignedTo string
}
