package schema

import (
	"encoding/json"
	"time"
)

// PanelEventType identifies a surface event.
type PanelEventType string

const (
	// PanelMessage carries a host message posted to the surface.
	PanelMessage PanelEventType = "message"
	// PanelReveal asks the surface to come to the foreground.
	PanelReveal PanelEventType = "reveal"
	// PanelDispose reports that the surface is gone.
	PanelDispose PanelEventType = "dispose"
)

// PanelEvent is emitted by a host surface.
type PanelEvent struct {
	Panel    PanelID         `json:"panel"`
	Type     PanelEventType  `json:"type"`
	ViewType string          `json:"view_type,omitempty"`
	Title    string          `json:"title,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NotificationLevel classifies host notifications.
type NotificationLevel string

const (
	NotifyInfo       NotificationLevel = "info"
	NotifyError      NotificationLevel = "error"
	NotifyIntent     NotificationLevel = "intent"
	NotifyDiagnostic NotificationLevel = "diagnostic"
	NotifyWorkspace  NotificationLevel = "workspace"
)

// Notification is a host-level message shown to the user.
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Path      string            `json:"path,omitempty"`
	Intent    *Intent           `json:"intent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
