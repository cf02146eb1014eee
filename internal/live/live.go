// Package live pushes map session change notifications to connected
// clients. Events only say that a session changed; clients re-read the
// session to get the new state.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/friendhub/internal/logging"
)

const channelPrefix = "mapsession:"

// subscriptionBuffer bounds how many undelivered events a slow client may
// accumulate before newer ones are dropped.
const subscriptionBuffer = 16

type Event struct {
	Type      string    `json:"type"`
	SessionID uuid.UUID `json:"session_id"`
	At        time.Time `json:"at"`
}

// Channel returns the pub/sub channel for a session.
func Channel(sessionID uuid.UUID) string {
	return channelPrefix + sessionID.String()
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type Publisher struct {
	client redisPublisher
	now    func() time.Time
}

func NewPublisher(client redisPublisher) *Publisher {
	return &Publisher{client: client, now: time.Now}
}

func (p *Publisher) PublishSessionEvent(ctx context.Context, sessionID uuid.UUID, eventType string) error {
	data, err := json.Marshal(Event{
		Type:      eventType,
		SessionID: sessionID,
		At:        p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding live event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(sessionID), data).Err(); err != nil {
		return fmt.Errorf("publishing live event: %w", err)
	}
	return nil
}

type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, sessionID uuid.UUID) (Subscription, error)
}

type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

// Subscribe waits for the subscription to be confirmed before returning so
// no event published after it returns is missed.
func (s *RedisSubscriber) Subscribe(ctx context.Context, sessionID uuid.UUID) (Subscription, error) {
	ps := s.client.Subscribe(ctx, Channel(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", Channel(sessionID), err)
	}

	sub := newForwarder(ps)
	go sub.run(ps.Channel())
	return sub, nil
}

type forwarder struct {
	closer interface{ Close() error }
	events chan Event
}

func newForwarder(closer interface{ Close() error }) *forwarder {
	return &forwarder{closer: closer, events: make(chan Event, subscriptionBuffer)}
}

func (f *forwarder) run(messages <-chan *redis.Message) {
	defer close(f.events)
	for msg := range messages {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logging.Warn("Dropping malformed live event", map[string]interface{}{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
			continue
		}
		select {
		case f.events <- ev:
		default:
			logging.Debug("Live subscriber is behind, dropping event", map[string]interface{}{
				"channel": msg.Channel,
			})
		}
	}
}

func (f *forwarder) Events() <-chan Event {
	return f.events
}

func (f *forwarder) Close() error {
	err := f.closer.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
