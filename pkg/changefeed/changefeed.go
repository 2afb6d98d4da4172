// Package changefeed fans document changes out over redis pub/sub so that
// background workers and websocket clients can react to them.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "changefeed:"

const (
	TopicUsers       = "users"
	TopicBookings    = "bookings"
	TopicPosts       = "posts"
	TopicLeaderboard = "leaderboard"
)

func CommentsTopic(postID string) string {
	return "comments:" + postID
}

func NotificationsTopic(userID string) string {
	return "notifications:" + userID
}

type EventType string

const (
	Created  EventType = "created"
	Updated  EventType = "updated"
	Deleted  EventType = "deleted"
	Snapshot EventType = "snapshot"
)

type Event struct {
	Topic      string          `json:"topic"`
	Collection string          `json:"collection"`
	Type       EventType       `json:"type"`
	DocumentID string          `json:"document_id,omitempty"`
	At         time.Time       `json:"at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an event payload.
func NewEvent(collection string, typ EventType, documentID string, data any) (Event, error) {
	ev := Event{Collection: collection, Type: typ, DocumentID: documentID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s event: %w", collection, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

var ErrUnavailable = errors.New("change feed unavailable")

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

type Feed struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Feed {
	return &Feed{rdb: rdb}
}

// Publish is a no-op when the feed has no redis client.
func (f *Feed) Publish(ctx context.Context, topic string, ev Event) error {
	if f == nil || f.rdb == nil {
		return nil
	}

	ev.Topic = topic
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	if err := f.rdb.Publish(ctx, channelPrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	if f == nil || f.rdb == nil {
		return nil, ErrUnavailable
	}
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}

	ps := f.rdb.Subscribe(ctx, channels(topics)...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", topics, err)
	}

	sub := &Subscription{
		ps:     ps,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go sub.pump()

	return sub, nil
}

// Subscription is a live listener. Close detaches it.
type Subscription struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Add attaches more topics to the same listener.
func (s *Subscription) Add(ctx context.Context, topics ...string) error {
	return s.ps.Subscribe(ctx, channels(topics)...)
}

// Remove detaches topics without closing the listener.
func (s *Subscription) Remove(ctx context.Context, topics ...string) error {
	return s.ps.Unsubscribe(ctx, channels(topics)...)
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *Subscription) pump() {
	defer close(s.events)

	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			continue
		}
		if ev.Topic == "" {
			ev.Topic = strings.TrimPrefix(msg.Channel, channelPrefix)
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func channels(topics []string) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = channelPrefix + t
	}
	return out
}
