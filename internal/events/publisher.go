package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// DefaultMaxLen caps the stream length on every publish (approximate trim).
const DefaultMaxLen = 100000

type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: DefaultMaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"report_id":  event.ReportID,
			"payload":    string(eventJSON),
			"timestamp":  event.Timestamp.Format(time.RFC3339),
		},
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Len returns the number of entries in the stream.
func (p *RedisPublisher) Len(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.stream).Result()
}

// Trim caps the stream at maxLen entries and returns how many were removed.
func (p *RedisPublisher) Trim(ctx context.Context, maxLen int64) (int64, error) {
	return p.client.XTrimMaxLen(ctx, p.stream, maxLen).Result()
}

// Recorder keeps published events in memory.
type Recorder struct {
	Events []*Event
}

func (r *Recorder) Publish(ctx context.Context, event *Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.EventType
	}
	return out
}
