// Package app wires the task graph pipeline, the activity ledger and the
// comment thread behind a single long-lived service plus its HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"taskforge/api/internal/activity"
	"taskforge/api/internal/export"
	"taskforge/api/internal/graph"
	"taskforge/api/internal/ingest"
	"taskforge/api/internal/realtime"
	"taskforge/api/internal/search"
	"taskforge/api/internal/store"
	"taskforge/api/internal/taskrepo"
	"taskforge/api/internal/util"
)

// dataStore is the persistence contract the service needs. *store.PostgresStore
// satisfies it; tests use a function-field fake.
type dataStore interface {
	ListEpics(ctx context.Context, projectID string) ([]store.Epic, error)

	CreateTaskGraph(ctx context.Context, epics []store.Epic, tasks []store.Task) error
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
	UpdateTaskFields(ctx context.Context, taskID string, fields map[string]any) (bool, error)
	UpdateTaskStatus(ctx context.Context, taskID, status string) (bool, error)
	AssignTask(ctx context.Context, taskID, userID string) (bool, error)
	DeleteTask(ctx context.Context, taskID string) error
	SetCommentsCount(ctx context.Context, taskID string, count int) error

	InsertActivity(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error)
	ListActivity(ctx context.Context, taskID string) ([]store.ActivityRecord, error)
	ListActivityByType(ctx context.Context, taskID, actionType string) ([]store.ActivityRecord, error)
	ListActivityByUser(ctx context.Context, taskID, userID string) ([]store.ActivityRecord, error)
	ListRecentActivity(ctx context.Context, taskID string, since time.Time) ([]store.ActivityRecord, error)
	FieldTimeline(ctx context.Context, taskID, fieldName string) ([]store.ActivityRecord, error)

	InsertComment(ctx context.Context, comment store.Comment) error
	GetComment(ctx context.Context, commentID string) (store.Comment, error)
	UpdateComment(ctx context.Context, commentID, content string) (bool, error)
	DeleteComment(ctx context.Context, commentID string) error
	ListComments(ctx context.Context, taskID string) ([]store.Comment, error)
	CountComments(ctx context.Context, taskID string) (int, error)

	Ping(ctx context.Context) error
}

type documentParser interface {
	ParseDocument(ctx context.Context, content, kind string) (ingest.ParseResult, string, error)
}

type broadcaster interface {
	PublishActivity(ctx context.Context, taskID string) error
	PublishComments(ctx context.Context, taskID string) error
	Subscribe(ctx context.Context, taskID, concern string) (<-chan realtime.Notification, func(), error)
	Ping(ctx context.Context) error
}

// Identity is the acting user supplied by the caller. The service does no
// session management of its own.
type Identity struct {
	UserID    string
	UserName  string
	UserEmail string
}

// Service is constructed once at startup and shared across all requests.
type Service struct {
	store             dataStore
	parser            documentParser
	broadcaster       broadcaster
	ledger            *activity.Ledger
	search            *search.Service
	repos             *taskrepo.Service
	exporter          *export.Service
	strictTransitions bool
}

// NewService assembles the service. searchSvc and repos may be nil when the
// backing systems are not configured.
func NewService(st dataStore, parser documentParser, bc broadcaster, searchSvc *search.Service, repos *taskrepo.Service, strictTransitions bool) *Service {
	return &Service{
		store:             st,
		parser:            parser,
		broadcaster:       bc,
		ledger:            activity.NewLedger(st, bc),
		search:            searchSvc,
		repos:             repos,
		exporter:          export.NewService(st),
		strictTransitions: strictTransitions,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingRealtime(ctx context.Context) error {
	if s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.Ping(ctx)
}

// IngestRequest describes one document to synthesize tasks from.
type IngestRequest struct {
	ProjectID  string
	Kind       string
	SourceFile string
	Content    string
	Actor      Identity
}

// IngestResult is the persisted batch plus non-fatal warnings.
type IngestResult struct {
	Epics    []store.Epic            `json:"epics"`
	Tasks    []store.Task            `json:"tasks"`
	Warnings []string                `json:"warnings"`
	Summary  *ingest.DocumentSummary `json:"summary,omitempty"`
}

// IngestDocument runs the full pipeline: provider parse, graph synthesis,
// atomic persistence, activity records, search indexing and the project repo
// commit. Any graph error rejects the entire batch; nothing is persisted.
func (s *Service) IngestDocument(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if req.ProjectID == "" {
		return IngestResult{}, domainError(http.StatusUnprocessableEntity, "INVALID_BODY", "projectId is required", nil)
	}

	parsed, _, err := s.parser.ParseDocument(ctx, req.Content, req.Kind)
	if err != nil {
		return IngestResult{}, mapIngestError(err)
	}

	built, err := graph.Build(graph.Input{
		Anchor: time.Now().Unix(),
		Epics:  parsed.Epics,
		Tasks:  parsed.Tasks,
	})
	if err != nil {
		return IngestResult{}, mapGraphError(err)
	}

	epics := make([]store.Epic, 0, len(built.Epics))
	for _, epic := range built.Epics {
		epics = append(epics, store.Epic{
			ID:          epic.ID,
			ProjectID:   req.ProjectID,
			Name:        epic.Name,
			Description: epic.Description,
			Priority:    epic.Priority,
		})
	}
	tasks := make([]store.Task, 0, len(built.Tasks))
	for _, task := range built.Tasks {
		tasks = append(tasks, store.Task{
			ID:             task.ID,
			ProjectID:      req.ProjectID,
			Title:          task.Title,
			Description:    task.Description,
			Status:         store.StatusTodo,
			Priority:       task.Priority,
			Complexity:     task.Complexity,
			Epic:           task.Epic,
			Dependencies:   task.Dependencies,
			RequiredSkills: task.RequiredSkills,
			EstimatedHours: task.EstimatedHours,
			Order:          task.Order,
			SourceFile:     req.SourceFile,
			Metadata: store.TaskMetadata{
				Type:           task.Type,
				SuggestedOrder: task.SuggestedOrder,
			},
		})
	}

	if err := s.store.CreateTaskGraph(ctx, epics, tasks); err != nil {
		return IngestResult{}, domainError(http.StatusInternalServerError, "PERSISTENCE_ERROR", "failed to persist task graph", nil)
	}

	for _, task := range tasks {
		if _, err := s.ledger.Record(ctx, store.ActivityRecord{
			TaskID:     task.ID,
			ActionType: store.ActionCreated,
			NewValue:   task.Title,
			UserID:     req.Actor.UserID,
			UserName:   req.Actor.UserName,
		}); err != nil {
			log.Printf("app: record created activity for %s: %v", task.ID, err)
		}
	}

	if s.search != nil {
		s.search.IndexTasks(taskRecords(tasks))
	}
	if s.repos != nil {
		if err := s.repos.EnsureProjectRepo(req.ProjectID, req.SourceFile, []byte(req.Content), req.Actor.UserName); err != nil {
			log.Printf("app: project repo commit for %s: %v", req.ProjectID, err)
		}
	}

	return IngestResult{
		Epics:    epics,
		Tasks:    tasks,
		Warnings: built.Warnings,
		Summary:  parsed.Summary,
	}, nil
}

func mapIngestError(err error) error {
	var reqErr *ingest.ProviderRequestError
	switch {
	case errors.Is(err, ingest.ErrNoProviderConfigured):
		return domainError(http.StatusServiceUnavailable, "NO_PROVIDER_CONFIGURED", "no document parsing provider configured", nil)
	case errors.Is(err, ingest.ErrDocumentTooShort):
		return domainError(http.StatusUnprocessableEntity, "DOCUMENT_TOO_SHORT", "document content is too short to parse", nil)
	case errors.Is(err, ingest.ErrInvalidKind):
		return domainError(http.StatusUnprocessableEntity, "INVALID_KIND", "document kind must be PRD or TDD", nil)
	case errors.Is(err, ingest.ErrMalformedResponse):
		return domainError(http.StatusBadGateway, "MALFORMED_RESPONSE", "provider response contained no JSON object", nil)
	case errors.Is(err, ingest.ErrInvalidJSON):
		return domainError(http.StatusBadGateway, "INVALID_JSON", "provider payload failed validation", nil)
	case errors.As(err, &reqErr):
		return domainError(http.StatusBadGateway, "PROVIDER_REQUEST_FAILED", reqErr.Error(), nil)
	default:
		return err
	}
}

func mapGraphError(err error) error {
	var dangling *graph.DanglingDependencyError
	var cycle *graph.CycleDetectedError
	var dup *graph.DuplicateTitleError
	switch {
	case errors.As(err, &dangling):
		return domainError(http.StatusUnprocessableEntity, "DANGLING_DEPENDENCY", dangling.Error(), map[string]any{
			"task":    dangling.TaskTitle,
			"missing": dangling.MissingTitle,
		})
	case errors.As(err, &cycle):
		return domainError(http.StatusUnprocessableEntity, "CYCLE_DETECTED", cycle.Error(), map[string]any{
			"titles": cycle.Titles,
		})
	case errors.As(err, &dup):
		return domainError(http.StatusUnprocessableEntity, "DUPLICATE_TITLE", dup.Error(), nil)
	default:
		return err
	}
}

func taskRecords(tasks []store.Task) []search.TaskRecord {
	records := make([]search.TaskRecord, 0, len(tasks))
	for _, task := range tasks {
		records = append(records, search.TaskRecord{
			ID:          task.ID,
			ProjectID:   task.ProjectID,
			Title:       task.Title,
			Description: task.Description,
			Epic:        task.Epic,
			Status:      task.Status,
			Priority:    task.Priority,
			AssignedTo:  task.AssignedTo,
		})
	}
	return records
}

func (s *Service) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	return tasks, nil
}

// trackedActions maps updatable columns to their ledger action types. Columns
// outside the map record a "<column>_changed" action rendered by the generic
// message template.
var trackedActions = map[string]string{
	"title":       store.ActionTitleChanged,
	"description": store.ActionDescriptionChanged,
	"status":      store.ActionStatusChanged,
	"assigned_to": store.ActionAssigned,
}

// UpdateTaskFields applies a partial update and appends one activity record
// per changed field.
func (s *Service) UpdateTaskFields(ctx context.Context, taskID string, fields map[string]any, actor Identity) (store.Task, error) {
	if len(fields) == 0 {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "INVALID_BODY", "no fields to update", nil)
	}
	before, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if status, ok := fields["status"]; ok {
		statusStr, _ := status.(string)
		if err := s.checkTransition(before.Status, statusStr); err != nil {
			return store.Task{}, err
		}
	}

	updated, err := s.store.UpdateTaskFields(ctx, taskID, fields)
	if err != nil {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "INVALID_FIELD", err.Error(), nil)
	}
	if !updated {
		return store.Task{}, domainError(http.StatusNotFound, "NOT_FOUND", "task not found", nil)
	}

	for _, column := range sortedFieldNames(fields) {
		newValue := fmt.Sprint(fields[column])
		oldValue := taskFieldValue(before, column)
		if oldValue == newValue {
			continue
		}
		actionType, ok := trackedActions[column]
		if !ok {
			actionType = column + "_changed"
		}
		if _, err := s.ledger.Record(ctx, store.ActivityRecord{
			TaskID:     taskID,
			ActionType: actionType,
			OldValue:   oldValue,
			NewValue:   newValue,
			FieldName:  column,
			UserID:     actor.UserID,
			UserName:   actor.UserName,
		}); err != nil {
			log.Printf("app: record %s activity for %s: %v", actionType, taskID, err)
		}
	}

	after, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if s.search != nil {
		s.search.IndexTask(taskRecords([]store.Task{after})[0])
	}
	return after, nil
}

// UpdateTaskStatus moves a task through the workflow, optionally enforcing
// legal transitions.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID, status string, actor Identity) (store.Task, error) {
	if !validStatus(status) {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "INVALID_STATUS", fmt.Sprintf("unknown status %q", status), nil)
	}

	before, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if err := s.checkTransition(before.Status, status); err != nil {
		return store.Task{}, err
	}

	updated, err := s.store.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		return store.Task{}, err
	}
	if !updated {
		return store.Task{}, domainError(http.StatusNotFound, "NOT_FOUND", "task not found", nil)
	}

	if _, err := s.ledger.Record(ctx, store.ActivityRecord{
		TaskID:     taskID,
		ActionType: store.ActionStatusChanged,
		OldValue:   before.Status,
		NewValue:   status,
		FieldName:  "status",
		UserID:     actor.UserID,
		UserName:   actor.UserName,
	}); err != nil {
		log.Printf("app: record status activity for %s: %v", taskID, err)
	}

	before.Status = status
	if s.search != nil {
		s.search.IndexTask(taskRecords([]store.Task{before})[0])
	}
	return before, nil
}

// AssignTask sets the assignee and records the assignment.
func (s *Service) AssignTask(ctx context.Context, taskID, assigneeID, assigneeName string, actor Identity) (store.Task, error) {
	before, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}

	updated, err := s.store.AssignTask(ctx, taskID, assigneeID)
	if err != nil {
		return store.Task{}, err
	}
	if !updated {
		return store.Task{}, domainError(http.StatusNotFound, "NOT_FOUND", "task not found", nil)
	}

	newValue := assigneeName
	if newValue == "" {
		newValue = assigneeID
	}
	if _, err := s.ledger.Record(ctx, store.ActivityRecord{
		TaskID:     taskID,
		ActionType: store.ActionAssigned,
		OldValue:   before.AssignedTo,
		NewValue:   newValue,
		FieldName:  "assigned_to",
		UserID:     actor.UserID,
		UserName:   actor.UserName,
	}); err != nil {
		log.Printf("app: record assign activity for %s: %v", taskID, err)
	}

	before.AssignedTo = assigneeID
	return before, nil
}

// DeleteTask removes the task; comments and activity rows cascade.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTask(taskID)
	}
	return nil
}

// CreateTaskBranch cuts task/<id> from the project repo's main branch.
func (s *Service) CreateTaskBranch(ctx context.Context, taskID string) error {
	if s.repos == nil {
		return domainError(http.StatusServiceUnavailable, "REPO_UNAVAILABLE", "project repositories not configured", nil)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.repos.CreateTaskBranch(task.ProjectID, task.ID); err != nil {
		return fmt.Errorf("create task branch: %w", err)
	}
	return nil
}

func validStatus(status string) bool {
	switch status {
	case store.StatusTodo, store.StatusInProgress, store.StatusInReview, store.StatusDone, store.StatusBlocked:
		return true
	}
	return false
}

// legalTransitions is consulted only when strict transitions are enabled.
var legalTransitions = map[string]map[string]bool{
	store.StatusTodo:       {store.StatusInProgress: true, store.StatusBlocked: true},
	store.StatusInProgress: {store.StatusInReview: true, store.StatusBlocked: true, store.StatusTodo: true},
	store.StatusInReview:   {store.StatusDone: true, store.StatusInProgress: true},
	store.StatusDone:       {},
	store.StatusBlocked:    {store.StatusTodo: true, store.StatusInProgress: true},
}

func (s *Service) checkTransition(from, to string) error {
	if !s.strictTransitions || from == to {
		return nil
	}
	if legalTransitions[from][to] {
		return nil
	}
	return domainError(http.StatusUnprocessableEntity, "INVALID_TRANSITION",
		fmt.Sprintf("cannot move task from %q to %q", from, to), nil)
}

// ActivityView pairs a ledger record with its rendered message.
type ActivityView struct {
	ID         int64     `json:"id"`
	TaskID     string    `json:"task_id"`
	ActionType string    `json:"action_type"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	FieldName  string    `json:"field_name,omitempty"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityQuery narrows TaskActivity. At most one filter applies.
type ActivityQuery struct {
	ActionType string
	UserID     string
	FieldName  string
}

// TaskActivity returns the ledger for a task with rendered messages.
func (s *Service) TaskActivity(ctx context.Context, taskID string, q ActivityQuery) ([]ActivityView, error) {
	var records []store.ActivityRecord
	var err error
	switch {
	case q.ActionType != "":
		records, err = s.ledger.HistoryByType(ctx, taskID, q.ActionType)
	case q.UserID != "":
		records, err = s.ledger.HistoryByUser(ctx, taskID, q.UserID)
	case q.FieldName != "":
		records, err = s.ledger.FieldTimeline(ctx, taskID, q.FieldName)
	default:
		records, err = s.ledger.History(ctx, taskID)
	}
	if err != nil {
		return nil, err
	}

	views := make([]ActivityView, 0, len(records))
	for _, record := range records {
		views = append(views, ActivityView{
			ID:         record.ID,
			TaskID:     record.TaskID,
			ActionType: record.ActionType,
			OldValue:   record.OldValue,
			NewValue:   record.NewValue,
			FieldName:  record.FieldName,
			UserID:     record.UserID,
			UserName:   record.UserName,
			Message:    activity.FormatMessage(record),
			CreatedAt:  record.CreatedAt,
		})
	}
	return views, nil
}

// TaskActivitySummary rolls up the task's ledger over the last 30 days:
// total records, per-action-type counts and distinct contributors.
func (s *Service) TaskActivitySummary(ctx context.Context, taskID string) (activity.Summary, error) {
	return s.ledger.Summarize(ctx, taskID)
}

// CreateComment appends a comment, recounts the thread and records the
// commented activity.
func (s *Service) CreateComment(ctx context.Context, taskID string, author Identity, content string) (store.Comment, error) {
	if content == "" {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "INVALID_BODY", "comment content is required", nil)
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return store.Comment{}, err
	}

	comment := store.Comment{
		ID:        util.NewID("comment"),
		TaskID:    taskID,
		UserID:    author.UserID,
		UserName:  author.UserName,
		UserEmail: author.UserEmail,
		Content:   content,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	s.recountComments(ctx, taskID)

	if _, err := s.ledger.Record(ctx, store.ActivityRecord{
		TaskID:     taskID,
		ActionType: store.ActionCommented,
		NewValue:   content,
		FieldName:  "comments",
		UserID:     author.UserID,
		UserName:   author.UserName,
	}); err != nil {
		log.Printf("app: record comment activity for %s: %v", taskID, err)
	}
	s.broadcastComments(ctx, taskID)

	return s.store.GetComment(ctx, comment.ID)
}

// UpdateComment edits a comment. Only the author may edit.
func (s *Service) UpdateComment(ctx context.Context, commentID string, requester Identity, content string) (store.Comment, error) {
	if content == "" {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "INVALID_BODY", "comment content is required", nil)
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return store.Comment{}, err
	}
	if comment.UserID != requester.UserID {
		return store.Comment{}, domainError(http.StatusForbidden, "OWNERSHIP_ERROR", "only the author can edit a comment", nil)
	}

	if _, err := s.store.UpdateComment(ctx, commentID, content); err != nil {
		return store.Comment{}, fmt.Errorf("update comment: %w", err)
	}

	s.recountComments(ctx, comment.TaskID)
	s.broadcastComments(ctx, comment.TaskID)

	return s.store.GetComment(ctx, commentID)
}

// DeleteComment removes a comment. Only the author may delete.
func (s *Service) DeleteComment(ctx context.Context, commentID string, requester Identity) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != requester.UserID {
		return domainError(http.StatusForbidden, "OWNERSHIP_ERROR", "only the author can delete a comment", nil)
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	s.recountComments(ctx, comment.TaskID)
	s.broadcastComments(ctx, comment.TaskID)
	return nil
}

func (s *Service) ListComments(ctx context.Context, taskID string) ([]store.Comment, error) {
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []store.Comment{}
	}
	return comments, nil
}

// recountComments recomputes the denormalized count from persisted rows.
// Two concurrent writers can each observe only their own insert and undercount;
// the next mutation self-heals, so the race is tolerated.
func (s *Service) recountComments(ctx context.Context, taskID string) {
	count, err := s.store.CountComments(ctx, taskID)
	if err != nil {
		log.Printf("app: recount comments for %s: %v", taskID, err)
		return
	}
	if err := s.store.SetCommentsCount(ctx, taskID, count); err != nil {
		log.Printf("app: set comments count for %s: %v", taskID, err)
	}
}

func (s *Service) broadcastComments(ctx context.Context, taskID string) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.PublishComments(ctx, taskID); err != nil {
		log.Printf("app: broadcast comments for %s: %v", taskID, err)
	}
}

// Search serves task search via Meilisearch or the SQL fallback.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ExportReport renders the project task breakdown.
func (s *Service) ExportReport(ctx context.Context, req export.Request) (*export.Result, error) {
	result, err := s.exporter.Export(ctx, req)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "pdf rendering is not available on this host", nil)
		}
		return nil, err
	}
	return result, nil
}

// SubscribeTask bridges realtime notifications for one task and concern.
func (s *Service) SubscribeTask(ctx context.Context, taskID, concern string) (<-chan realtime.Notification, func(), error) {
	if s.broadcaster == nil {
		return nil, nil, domainError(http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "realtime notifications not configured", nil)
	}
	return s.broadcaster.Subscribe(ctx, taskID, concern)
}

// ProjectHistory lists the project repo's commits.
func (s *Service) ProjectHistory(ctx context.Context, projectID string, limit int) ([]taskrepo.CommitInfo, error) {
	if s.repos == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REPO_UNAVAILABLE", "project repositories not configured", nil)
	}
	return s.repos.History(projectID, limit)
}

func taskFieldValue(task store.Task, column string) string {
	switch column {
	case "title":
		return task.Title
	case "description":
		return task.Description
	case "status":
		return task.Status
	case "priority":
		return task.Priority
	case "complexity":
		return task.Complexity
	case "epic":
		return task.Epic
	case "assigned_to":
		return task.AssignedTo
	case "estimated_hours":
		return strconv.Itoa(task.EstimatedHours)
	case "source_file":
		return task.SourceFile
	}
	return ""
}

func sortedFieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
