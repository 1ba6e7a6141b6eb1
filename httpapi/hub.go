package httpapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

// Global is the hub key notifications are published under.
const Global schema.PanelID = ""

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq          uint64               `json:"seq"`
	Type         string               `json:"type"`
	Panel        schema.PanelID       `json:"panel,omitempty"`
	ViewType     string               `json:"view_type,omitempty"`
	Title        string               `json:"title,omitempty"`
	Payload      json.RawMessage      `json:"payload,omitempty"`
	Notification *schema.Notification `json:"notification,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Hub broadcasts events per panel, keeping a bounded history for replay.
type Hub struct {
	mu          sync.Mutex
	keys        map[schema.PanelID]*keyHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		keys:        make(map[schema.PanelID]*keyHub),
		historySize: historySize,
	}
}

// OnPanelEvent implements core.EventSink.
func (h *Hub) OnPanelEvent(event schema.PanelEvent) {
	log := logx.Ctx(context.Background()).With("panel", event.Panel)
	log.Trace("hub panel event", "type", event.Type, "bytes", len(event.Payload))
	h.publish(event.Panel, StreamEvent{
		Type:      string(event.Type),
		Panel:     event.Panel,
		ViewType:  event.ViewType,
		Title:     event.Title,
		Payload:   event.Payload,
		Timestamp: time.Now(),
	}, event.Type == schema.PanelDispose)
}

// OnNotification implements core.EventSink.
func (h *Hub) OnNotification(event schema.Notification) {
	logx.Ctx(context.Background()).Trace("hub notification", "level", event.Level)
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	h.publish(Global, StreamEvent{
		Type:         "notification",
		Notification: &event,
		Timestamp:    ts,
	}, false)
}

// Subscribe registers a subscriber for a key. It returns the current sequence
// number and a copy of the history so callers can replay without gaps.
func (h *Hub) Subscribe(key schema.PanelID) (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kh := h.getOrCreateKeyHubLocked(key)
	ch := make(chan StreamEvent, 256)
	kh.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), kh.history...)
	seq := kh.seq
	log := logx.Ctx(context.Background()).With("panel", key)
	log.Info("hub subscribe", "subs", len(kh.subs), "history", len(history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(kh.subs, ch)
			close(ch)
			remaining := len(kh.subs)
			if remaining == 0 && kh.closed && h.keys[key] == kh {
				delete(h.keys, key)
			}
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq, history
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(key schema.PanelID, after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	kh := h.keys[key]
	if kh == nil {
		return nil
	}
	events := replayAfter(kh.history, after)
	logx.Ctx(context.Background()).With("panel", key).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func replayAfter(history []StreamEvent, after uint64) []StreamEvent {
	events := make([]StreamEvent, 0, len(history))
	for _, event := range history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(key schema.PanelID, event StreamEvent, closing bool) {
	h.mu.Lock()
	kh := h.getOrCreateKeyHubLocked(key)
	kh.seq++
	event.Seq = kh.seq
	kh.history = append(kh.history, event)
	if len(kh.history) > h.historySize {
		kh.history = kh.history[len(kh.history)-h.historySize:]
	}
	dropped := 0
	for sub := range kh.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if closing {
		kh.closed = true
		if len(kh.subs) == 0 {
			delete(h.keys, key)
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		logx.Ctx(context.Background()).With("panel", key).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func (h *Hub) getOrCreateKeyHubLocked(key schema.PanelID) *keyHub {
	kh := h.keys[key]
	if kh == nil {
		kh = &keyHub{
			subs: make(map[chan StreamEvent]struct{}),
		}
		h.keys[key] = kh
	}
	return kh
}

type keyHub struct {
	seq     uint64
	history []StreamEvent
	subs    map[chan StreamEvent]struct{}
	closed  bool
}
