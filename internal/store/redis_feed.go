package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisFeed carries change notifications over Redis Pub/Sub. Writers
// publish the affected row, one channel per table and event kind.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func feedChannel(table string, kind EventKind) string {
	return fmt.Sprintf("store:%s:%s", table, kind)
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return f.client.Publish(ctx, feedChannel(ev.Table, ev.Kind), data).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error) {
	if len(kinds) == 0 {
		kinds = []EventKind{EventInsert, EventUpdate}
	}
	channels := make([]string, len(kinds))
	for i, kind := range kinds {
		channels[i] = feedChannel(table, kind)
	}

	pubsub := f.client.Subscribe(ctx, channels...)
	// Force the subscription onto the wire before returning so no
	// event published after Subscribe can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	closed sync.Once
}

func (s *redisSubscription) pump() {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
