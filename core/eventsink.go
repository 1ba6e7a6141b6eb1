package core

import "pkt.systems/rooboost/schema"

// EventSink receives surface and notification events from a host.
type EventSink interface {
	OnPanelEvent(event schema.PanelEvent)
	OnNotification(event schema.Notification)
}
