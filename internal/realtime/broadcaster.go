// Package realtime broadcasts invalidation hints over Redis pub/sub so
// connected clients know to refetch a task's activity or comments. Payloads
// carry no data deltas; the database is the source of truth.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Concerns a client can subscribe to per task.
const (
	ConcernActivity = "activity"
	ConcernComments = "comments"
)

// Notification is the refetch hint published on a task channel.
type Notification struct {
	TaskID  string    `json:"task_id"`
	Concern string    `json:"concern"`
	SentAt  time.Time `json:"sent_at"`
}

// Broadcaster publishes and subscribes task change notifications. Delivery is
// at-least-once and unordered; consumers must treat every message as a hint
// to refetch, never as a state transfer.
type Broadcaster struct {
	client *redis.Client
}

func NewBroadcaster(redisURL string) (*Broadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Broadcaster{client: client}, nil
}

// NewBroadcasterWithClient wraps an existing Redis client, used by tests.
func NewBroadcasterWithClient(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

func channelName(taskID, concern string) string {
	if concern == ConcernComments {
		return "task_comments:" + taskID
	}
	return "task_activity:" + taskID
}

// Publish sends a refetch hint for one task and concern.
func (b *Broadcaster) Publish(ctx context.Context, taskID, concern string) error {
	payload, err := json.Marshal(Notification{
		TaskID:  taskID,
		Concern: concern,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(taskID, concern), payload).Err(); err != nil {
		return fmt.Errorf("publish %s notification: %w", concern, err)
	}
	return nil
}

// PublishActivity sends a refetch hint on the task's activity channel.
func (b *Broadcaster) PublishActivity(ctx context.Context, taskID string) error {
	return b.Publish(ctx, taskID, ConcernActivity)
}

// PublishComments sends a refetch hint on the task's comments channel.
func (b *Broadcaster) PublishComments(ctx context.Context, taskID string) error {
	return b.Publish(ctx, taskID, ConcernComments)
}

// Subscribe delivers notifications for one task and concern until cancel is
// called or ctx is done. Messages that fail to decode are dropped.
func (b *Broadcaster) Subscribe(ctx context.Context, taskID, concern string) (<-chan Notification, func(), error) {
	sub := b.client.Subscribe(ctx, channelName(taskID, concern))
	// Force the subscription to be established before returning so callers
	// never miss messages published right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channelName(taskID, concern), err)
	}

	out := make(chan Notification)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}

func (b *Broadcaster) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Broadcaster) Close() error {
	return b.client.Close()
}
