package host

import (
	"context"
	"sync"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/internal/protocol"
	"pkt.systems/rooboost/schema"
)

// Surface is a host-side UI surface.
type Surface struct {
	host *Host
	info SurfaceInfo

	mu        sync.Mutex
	disposed  bool
	onDispose []func()
	onMessage core.MessageHandler
}

var _ core.Surface = (*Surface)(nil)

func (s *Surface) ID() schema.PanelID { return s.info.ID }

// Info describes the surface.
func (s *Surface) Info() SurfaceInfo { return s.info }

// Post encodes message and publishes it to the surface's subscribers.
func (s *Surface) Post(ctx context.Context, message any) error {
	if s.Disposed() {
		return schema.ErrPanelDisposed
	}
	payload, err := protocol.Encode(message)
	if err != nil {
		return err
	}
	logx.Ctx(ctx).Trace("host surface post", "panel", s.info.ID, "bytes", len(payload))
	s.host.publish(schema.PanelEvent{Panel: s.info.ID, Type: schema.PanelMessage, Payload: payload})
	return nil
}

func (s *Surface) Reveal() {
	if s.Disposed() {
		return
	}
	s.host.publish(schema.PanelEvent{
		Panel:    s.info.ID,
		Type:     schema.PanelReveal,
		ViewType: s.info.ViewType,
		Title:    s.info.Title,
	})
}

// Dispose closes the surface; hooks run once.
func (s *Surface) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	hooks := s.onDispose
	s.onDispose = nil
	s.onMessage = nil
	s.mu.Unlock()

	s.host.forget(s.info.ID)
	s.host.log.Info("host surface dispose", "panel", s.info.ID)
	s.host.publish(schema.PanelEvent{Panel: s.info.ID, Type: schema.PanelDispose})
	for _, fn := range hooks {
		fn()
	}
}

// Disposed reports whether Dispose ran.
func (s *Surface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Surface) OnDidDispose(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		fn()
		return
	}
	s.onDispose = append(s.onDispose, fn)
	s.mu.Unlock()
}

func (s *Surface) OnDidReceiveMessage(fn core.MessageHandler) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}
