package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventPanel carries a surface event.
	EventPanel EventType = "panel"
	// EventNotification carries a host notification.
	EventNotification EventType = "notification"
)

// Global is the topic notifications are published on.
const Global schema.PanelID = ""

// Event represents a UI-facing event emitted by a host.
type Event struct {
	Type         EventType
	Panel        schema.PanelEvent
	Notification schema.Notification
}

// Bus fans events out to per-topic subscribers. Panel events are keyed by
// panel id, notifications by Global.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.PanelID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.PanelID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the topic and returns a channel + cancel.
func (b *Bus) Subscribe(topic schema.PanelID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	topicSubs := b.subs[topic]
	if topicSubs == nil {
		topicSubs = make(map[chan Event]struct{})
		b.subs[topic] = topicSubs
	}
	topicSubs[ch] = struct{}{}
	count := len(topicSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("topic", topic).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[topic]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, topic)
				}
			}
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.With("topic", topic).Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnPanelEvent publishes a surface event on the panel's topic.
func (b *Bus) OnPanelEvent(event schema.PanelEvent) {
	b.publish(event.Panel, Event{Type: EventPanel, Panel: event})
}

// OnNotification publishes a notification on the Global topic.
func (b *Bus) OnNotification(event schema.Notification) {
	b.publish(Global, Event{Type: EventNotification, Notification: event})
}

func (b *Bus) publish(topic schema.PanelID, event Event) {
	if b == nil {
		return
	}
	// Sends happen under the lock so a concurrent cancel cannot close a
	// channel mid-send.
	b.mu.Lock()
	dropped := 0
	for sub := range b.subs[topic] {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("topic", topic).Trace("eventbus dropped", "count", dropped)
	}
}
