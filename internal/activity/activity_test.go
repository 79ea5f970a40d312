package activity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"taskforge/api/internal/store"
)

type fakeLedgerStore struct {
	insertActivity func(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error)
	listActivity   func(ctx context.Context, taskID string) ([]store.ActivityRecord, error)
	listRecent     func(ctx context.Context, taskID string, since time.Time) ([]store.ActivityRecord, error)
}

func (f *fakeLedgerStore) InsertActivity(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error) {
	return f.insertActivity(ctx, record)
}

func (f *fakeLedgerStore) ListActivity(ctx context.Context, taskID string) ([]store.ActivityRecord, error) {
	return f.listActivity(ctx, taskID)
}

func (f *fakeLedgerStore) ListActivityByType(ctx context.Context, taskID, actionType string) ([]store.ActivityRecord, error) {
	return nil, nil
}

func (f *fakeLedgerStore) ListActivityByUser(ctx context.Context, taskID, userID string) ([]store.ActivityRecord, error) {
	return nil, nil
}

func (f *fakeLedgerStore) ListRecentActivity(ctx context.Context, taskID string, since time.Time) ([]store.ActivityRecord, error) {
	if f.listRecent == nil {
		return nil, nil
	}
	return f.listRecent(ctx, taskID, since)
}

func (f *fakeLedgerStore) FieldTimeline(ctx context.Context, taskID, fieldName string) ([]store.ActivityRecord, error) {
	return nil, nil
}

type fakeBroadcaster struct {
	published []string
	err       error
}

func (f *fakeBroadcaster) PublishActivity(ctx context.Context, taskID string) error {
	f.published = append(f.published, taskID)
	return f.err
}

func TestRecordAppendsAndBroadcasts(t *testing.T) {
	st := &fakeLedgerStore{
		insertActivity: func(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error) {
			record.ID = 7
			return record, nil
		},
	}
	bc := &fakeBroadcaster{}
	ledger := NewLedger(st, bc)

	saved, err := ledger.Record(context.Background(), store.ActivityRecord{
		TaskID:     "task-1",
		ActionType: store.ActionCreated,
		UserName:   "Alice",
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if saved.ID != 7 {
		t.Errorf("expected persisted id 7, got %d", saved.ID)
	}
	if len(bc.published) != 1 || bc.published[0] != "task-1" {
		t.Errorf("expected broadcast for task-1, got %v", bc.published)
	}
}

func TestRecordBroadcastFailureIsNotFatal(t *testing.T) {
	st := &fakeLedgerStore{
		insertActivity: func(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error) {
			return record, nil
		},
	}
	ledger := NewLedger(st, &fakeBroadcaster{err: errors.New("redis down")})

	if _, err := ledger.Record(context.Background(), store.ActivityRecord{TaskID: "task-1"}); err != nil {
		t.Fatalf("broadcast failure must not fail the append: %v", err)
	}
}

func TestRecordStoreFailureDoesNotBroadcast(t *testing.T) {
	st := &fakeLedgerStore{
		insertActivity: func(ctx context.Context, record store.ActivityRecord) (store.ActivityRecord, error) {
			return store.ActivityRecord{}, errors.New("insert failed")
		},
	}
	bc := &fakeBroadcaster{}
	ledger := NewLedger(st, bc)

	if _, err := ledger.Record(context.Background(), store.ActivityRecord{TaskID: "task-1"}); err == nil {
		t.Fatal("expected error from failed append")
	}
	if len(bc.published) != 0 {
		t.Errorf("failed append must not broadcast, got %v", bc.published)
	}
}

func TestSummarizeRollsUpRecentLedger(t *testing.T) {
	var gotSince time.Time
	st := &fakeLedgerStore{
		listRecent: func(ctx context.Context, taskID string, since time.Time) ([]store.ActivityRecord, error) {
			gotSince = since
			return []store.ActivityRecord{
				{ActionType: store.ActionCommented, UserName: "Carol"},
				{ActionType: store.ActionStatusChanged, UserName: "Bob"},
				{ActionType: store.ActionStatusChanged, UserName: "Alice"},
				{ActionType: store.ActionCreated, UserName: "Alice"},
			}, nil
		},
	}
	ledger := NewLedger(st, &fakeBroadcaster{})

	summary, err := ledger.Summarize(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Total != 4 {
		t.Errorf("expected total 4, got %d", summary.Total)
	}
	wantByType := map[string]int{
		store.ActionCommented:     1,
		store.ActionStatusChanged: 2,
		store.ActionCreated:       1,
	}
	if !reflect.DeepEqual(summary.ByType, wantByType) {
		t.Errorf("by_type = %v, want %v", summary.ByType, wantByType)
	}
	// Contributors are distinct, in first-seen order.
	if !reflect.DeepEqual(summary.Contributors, []string{"Carol", "Bob", "Alice"}) {
		t.Errorf("unexpected contributors %v", summary.Contributors)
	}
	window := time.Since(gotSince)
	if window < 29*24*time.Hour || window > 31*24*time.Hour {
		t.Errorf("cutoff should be roughly 30 days back, got %v", window)
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	ledger := NewLedger(&fakeLedgerStore{}, &fakeBroadcaster{})
	summary, err := ledger.Summarize(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Total != 0 || len(summary.ByType) != 0 || len(summary.Contributors) != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestFormatMessage(t *testing.T) {
	cases := []struct {
		record store.ActivityRecord
		want   string
	}{
		{
			store.ActivityRecord{ActionType: store.ActionCreated, UserName: "Alice"},
			"Alice created this task",
		},
		{
			store.ActivityRecord{ActionType: store.ActionStatusChanged, UserName: "Alice", OldValue: "todo", NewValue: "done"},
			`Alice changed status from "todo" to "done"`,
		},
		{
			store.ActivityRecord{ActionType: store.ActionTitleChanged, UserName: "Bob", NewValue: "Ship it"},
			`Bob changed title to "Ship it"`,
		},
		{
			store.ActivityRecord{ActionType: store.ActionDescriptionChanged, UserName: "Bob"},
			"Bob updated the description",
		},
		{
			store.ActivityRecord{ActionType: store.ActionAssigned, UserName: "Alice", NewValue: "Bob"},
			"Alice assigned to Bob",
		},
		{
			store.ActivityRecord{ActionType: store.ActionCommented, UserName: "Carol"},
			"Carol added a comment",
		},
		{
			store.ActivityRecord{ActionType: "priority_changed", UserName: "Carol", FieldName: "priority"},
			"Carol made changes to priority",
		},
	}
	for _, tc := range cases {
		if got := FormatMessage(tc.record); got != tc.want {
			t.Errorf("FormatMessage(%s) = %q, want %q", tc.record.ActionType, got, tc.want)
		}
	}
}
