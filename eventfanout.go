package rooboost

import (
	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnPanelEvent(event schema.PanelEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnPanelEvent(event)
	}
}

func (f eventFanout) OnNotification(event schema.Notification) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnNotification(event)
	}
}
