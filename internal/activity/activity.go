// Package activity records the append-only ledger of task mutations and
// renders ledger rows as display messages.
package activity

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskforge/api/internal/store"
)

// summaryWindowDays bounds the summary rollup to recent history.
const summaryWindowDays = 30

type ledgerStore interface {
	InsertActivity(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error)
	ListActivity(ctx context.Context, taskID string) ([]store.ActivityRecord, error)
	ListActivityByType(ctx context.Context, taskID, actionType string) ([]store.ActivityRecord, error)
	ListActivityByUser(ctx context.Context, taskID, userID string) ([]store.ActivityRecord, error)
	ListRecentActivity(ctx context.Context, taskID string, since time.Time) ([]store.ActivityRecord, error)
	FieldTimeline(ctx context.Context, taskID, fieldName string) ([]store.ActivityRecord, error)
}

type broadcaster interface {
	PublishActivity(ctx context.Context, taskID string) error
}

// Ledger appends activity records and notifies realtime subscribers. The
// ledger is append-only; there is no update or delete path.
type Ledger struct {
	store       ledgerStore
	broadcaster broadcaster
}

func NewLedger(s ledgerStore, b broadcaster) *Ledger {
	return &Ledger{store: s, broadcaster: b}
}

// Record appends one activity row and broadcasts the change. The append is
// authoritative; a failed broadcast is logged and dropped since subscribers
// refetch on the next event anyway.
func (l *Ledger) Record(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error) {
	saved, err := l.store.InsertActivity(ctx, record)
	if err != nil {
		return store.ActivityRecord{}, fmt.Errorf("record activity: %w", err)
	}
	if l.broadcaster != nil {
		if err := l.broadcaster.PublishActivity(ctx, record.TaskID); err != nil {
			log.Printf("activity: broadcast for task %s failed: %v", record.TaskID, err)
		}
	}
	return saved, nil
}

// History returns the full ledger for a task, newest first.
func (l *Ledger) History(ctx context.Context, taskID string) ([]store.ActivityRecord, error) {
	return l.store.ListActivity(ctx, taskID)
}

// HistoryByType filters the ledger to one action type.
func (l *Ledger) HistoryByType(ctx context.Context, taskID, actionType string) ([]store.ActivityRecord, error) {
	return l.store.ListActivityByType(ctx, taskID, actionType)
}

// HistoryByUser filters the ledger to one actor.
func (l *Ledger) HistoryByUser(ctx context.Context, taskID, userID string) ([]store.ActivityRecord, error) {
	return l.store.ListActivityByUser(ctx, taskID, userID)
}

// Summary rolls up a task's recent ledger: total records, counts per action
// type and the distinct contributor names in first-seen order.
type Summary struct {
	Total        int            `json:"total"`
	ByType       map[string]int `json:"by_type"`
	Contributors []string       `json:"contributors"`
}

// Summarize aggregates the last 30 days of a task's ledger.
func (l *Ledger) Summarize(ctx context.Context, taskID string) (Summary, error) {
	since := time.Now().AddDate(0, 0, -summaryWindowDays)
	records, err := l.store.ListRecentActivity(ctx, taskID, since)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{ByType: map[string]int{}, Contributors: []string{}}
	seen := map[string]bool{}
	for _, record := range records {
		summary.Total++
		summary.ByType[record.ActionType]++
		if !seen[record.UserName] {
			seen[record.UserName] = true
			summary.Contributors = append(summary.Contributors, record.UserName)
		}
	}
	return summary, nil
}

// FieldTimeline returns the change history of a single field, oldest first,
// so consecutive old/new values chain together.
func (l *Ledger) FieldTimeline(ctx context.Context, taskID, fieldName string) ([]store.ActivityRecord, error) {
	return l.store.FieldTimeline(ctx, taskID, fieldName)
}

// FormatMessage renders a ledger row for display. Unknown action types fall
// through to the generic template.
func FormatMessage(record store.ActivityRecord) string {
	switch record.ActionType {
	case store.ActionCreated:
		return fmt.Sprintf("%s created this task", record.UserName)
	case store.ActionStatusChanged:
		return fmt.Sprintf("%s changed status from %q to %q", record.UserName, record.OldValue, record.NewValue)
	case store.ActionTitleChanged:
		return fmt.Sprintf("%s changed title to %q", record.UserName, record.NewValue)
	case store.ActionDescriptionChanged:
		return fmt.Sprintf("%s updated the description", record.UserName)
	case store.ActionAssigned:
		return fmt.Sprintf("%s assigned to %s", record.UserName, record.NewValue)
	case store.ActionCommented:
		return fmt.Sprintf("%s added a comment", record.UserName)
	default:
		return fmt.Sprintf("%s made changes to %s", record.UserName, record.FieldName)
	}
}
