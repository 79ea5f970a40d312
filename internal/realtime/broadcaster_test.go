package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcasterWithClient(client)
}

func waitFor(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	b := testBroadcaster(t)
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "task-1", ConcernActivity)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := b.PublishActivity(ctx, "task-1"); err != nil {
		t.Fatalf("PublishActivity failed: %v", err)
	}

	n := waitFor(t, ch)
	if n.TaskID != "task-1" || n.Concern != ConcernActivity {
		t.Errorf("unexpected notification: %+v", n)
	}
	if n.SentAt.IsZero() {
		t.Error("notification missing timestamp")
	}
}

func TestConcernsUseSeparateChannels(t *testing.T) {
	b := testBroadcaster(t)
	ctx := context.Background()

	comments, cancel, err := b.Subscribe(ctx, "task-1", ConcernComments)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := b.PublishActivity(ctx, "task-1"); err != nil {
		t.Fatalf("PublishActivity failed: %v", err)
	}
	if err := b.PublishComments(ctx, "task-1"); err != nil {
		t.Fatalf("PublishComments failed: %v", err)
	}

	n := waitFor(t, comments)
	if n.Concern != ConcernComments {
		t.Errorf("comments subscriber received %q notification", n.Concern)
	}
}

func TestSubscribeScopedToTask(t *testing.T) {
	b := testBroadcaster(t)
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "task-2", ConcernActivity)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := b.PublishActivity(ctx, "task-1"); err != nil {
		t.Fatalf("PublishActivity failed: %v", err)
	}
	if err := b.PublishActivity(ctx, "task-2"); err != nil {
		t.Fatalf("PublishActivity failed: %v", err)
	}

	n := waitFor(t, ch)
	if n.TaskID != "task-2" {
		t.Errorf("subscriber for task-2 received notification for %q", n.TaskID)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := testBroadcaster(t)
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "task-1", ConcernActivity)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
