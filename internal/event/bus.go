// Package event implements the in-process publish/subscribe hub for
// coordination state changes, with optional distributed fan-out over
// NATS. Local delivery is synchronous; distributed delivery is
// best-effort and never fails the publisher.
package event

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/prompted365/hive/internal/natsbus"
)

// Event is a state-change notification. Origin carries the publishing
// instance id so distributed echoes can be suppressed.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Origin    string         `json:"origin"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

type subscription struct {
	pattern string
	handler Handler
}

// Bus is the pub/sub hub. Subscription patterns are either exact event
// types ("task:assigned") or prefix patterns ending in ":*"
// ("task:*"), which match every type under that namespace. Prefix
// matching is the only wildcard form.
type Bus struct {
	instanceID string

	mu   sync.RWMutex
	subs map[string][]*subscription // pattern -> subscriptions

	remote *natsbus.Client
}

// New creates a bus identified by instanceID. An empty id gets a fresh
// UUID; the id tags every distributed envelope for echo suppression.
func New(instanceID string) *Bus {
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	return &Bus{
		instanceID: instanceID,
		subs:       make(map[string][]*subscription),
	}
}

func (b *Bus) InstanceID() string {
	return b.instanceID
}

// Publish delivers the event to all matching local subscribers
// synchronously, then broadcasts it on the distributed channel when
// one is attached. Transport failures are logged and swallowed: local
// delivery has already succeeded and the caller must not see an error.
func (b *Bus) Publish(eventType string, data map[string]any) {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Origin:    b.instanceID,
	}

	b.deliverLocal(ev)

	if b.remote != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			slog.Warn("event marshal failed", "type", eventType, "error", err)
			return
		}
		if err := b.remote.Publish(natsbus.TopicEvents, payload); err != nil {
			slog.Warn("distributed publish failed", "type", eventType, "error", err)
		}
	}
}

func (b *Bus) deliverLocal(ev Event) {
	b.mu.RLock()
	var matched []*subscription
	for pattern, subs := range b.subs {
		if matches(pattern, ev.Type) {
			matched = append(matched, subs...)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		sub.handler(ev)
	}
}

func matches(pattern, eventType string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ":*"); ok {
		return strings.HasPrefix(eventType, prefix+":")
	}
	return pattern == eventType
}

// Subscribe registers handler for pattern and returns a function that
// removes exactly that registration.
func (b *Bus) Subscribe(pattern string, handler Handler) func() {
	sub := &subscription{pattern: pattern, handler: handler}

	b.mu.Lock()
	b.subs[pattern] = append(b.subs[pattern], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[pattern]
		for i, s := range subs {
			if s == sub {
				b.subs[pattern] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[pattern]) == 0 {
			delete(b.subs, pattern)
		}
	}
}

// AttachRemote connects the bus to the distributed channel. Inbound
// envelopes originating from this instance are dropped; all others are
// delivered locally without re-broadcasting, so a relayed event can
// never loop.
func (b *Bus) AttachRemote(client *natsbus.Client) error {
	b.remote = client
	_, err := client.Subscribe(natsbus.TopicEvents, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("invalid distributed event payload", "error", err)
			return
		}
		if ev.Origin == b.instanceID {
			return // our own echo
		}
		b.deliverLocal(ev)
	})
	return err
}
