// Package host implements the capability surface plugins run against.
//
// Surfaces created here are transport-neutral: every host message, reveal
// and dispose is published to an EventSink (the HTTP hub, the terminal event
// bus, or both), and inbound surface messages arrive through Deliver.
package host

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/diag"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

// Config configures a Host.
type Config struct {
	// OpenCommand overrides the platform opener used for OpenWorkspace.
	OpenCommand string
	// Opener replaces the command-based opener entirely.
	Opener              Opener
	DiagnosticsMaxLines int
	Logger              pslog.Logger
}

// SurfaceInfo describes a live surface.
type SurfaceInfo struct {
	ID       schema.PanelID `json:"id"`
	ViewType string         `json:"view_type"`
	Title    string         `json:"title"`
	Created  time.Time      `json:"created"`
}

// Host implements core.Host over an EventSink.
type Host struct {
	sink   core.EventSink
	opener Opener
	diag   *diag.Set
	log    pslog.Logger

	mu       sync.Mutex
	surfaces map[schema.PanelID]*Surface
}

var _ core.Host = (*Host)(nil)

// New constructs a Host publishing to sink. sink may be nil.
func New(cfg Config, sink core.EventSink) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	opener := cfg.Opener
	if opener == nil {
		opener = NewCommandOpener(cfg.OpenCommand)
	}
	h := &Host{
		sink:     sink,
		opener:   opener,
		log:      logger,
		surfaces: make(map[schema.PanelID]*Surface),
	}
	h.diag = diag.NewSet(cfg.DiagnosticsMaxLines, logger, func(name string) {
		h.notify(schema.Notification{Level: schema.NotifyDiagnostic, Channel: name})
	})
	return h
}

// Diagnostics returns the host's diagnostic channels.
func (h *Host) Diagnostics() *diag.Set {
	return h.diag
}

// OpenWorkspace opens path, which must be a directory, with the configured opener.
func (h *Host) OpenWorkspace(ctx context.Context, path string) error {
	log := logx.Ctx(ctx).With("path", path)
	info, err := os.Stat(path)
	if err != nil {
		log.Warn("host open workspace failed", "err", err)
		return fmt.Errorf("open workspace: %w", err)
	}
	if !info.IsDir() {
		log.Warn("host open workspace failed", "reason", "not a directory")
		return fmt.Errorf("open workspace: %s is not a directory", path)
	}
	if err := h.opener.Open(ctx, path); err != nil {
		log.Warn("host open workspace failed", "err", err)
		return fmt.Errorf("open workspace: %w", err)
	}
	log.Info("host open workspace")
	h.notify(schema.Notification{Level: schema.NotifyWorkspace, Path: path})
	return nil
}

func (h *Host) ShowInfo(ctx context.Context, message string) {
	logx.Ctx(ctx).Info("host info", "message", message)
	h.notify(schema.Notification{Level: schema.NotifyInfo, Message: message})
}

func (h *Host) ShowError(ctx context.Context, message string) {
	logx.Ctx(ctx).Warn("host error", "message", message)
	h.notify(schema.Notification{Level: schema.NotifyError, Message: message})
}

// DiagnosticSink returns the named channel, creating it on first use.
func (h *Host) DiagnosticSink(name string) core.DiagnosticSink {
	return h.diag.Channel(name)
}

// ForwardIntent publishes a move/delete intent for whoever owns the task
// directories. The host itself never touches them.
func (h *Host) ForwardIntent(ctx context.Context, intent schema.Intent) error {
	logx.Ctx(ctx).Info("host intent", "kind", intent.Kind, "tasks", len(intent.TaskPaths), "target", intent.TargetSource, "panel", intent.Panel)
	message := fmt.Sprintf("%s %d task(s)", intent.Kind, len(intent.TaskPaths))
	if intent.TargetSource != "" {
		message += " to " + string(intent.TargetSource)
	}
	h.notify(schema.Notification{Level: schema.NotifyIntent, Message: message, Intent: &intent})
	return nil
}

// CreateSurface creates a surface with a fresh id.
func (h *Host) CreateSurface(ctx context.Context, opts core.SurfaceOptions) (core.Surface, error) {
	s := &Surface{
		host: h,
		info: SurfaceInfo{
			ID:       schema.PanelID(uuid.NewString()),
			ViewType: opts.ViewType,
			Title:    opts.Title,
			Created:  time.Now(),
		},
	}
	h.mu.Lock()
	h.surfaces[s.info.ID] = s
	count := len(h.surfaces)
	h.mu.Unlock()
	logx.Ctx(ctx).Info("host surface create", "panel", s.info.ID, "view_type", opts.ViewType, "surfaces", count)
	return s, nil
}

// Surfaces lists live surfaces, oldest first.
func (h *Host) Surfaces() []SurfaceInfo {
	h.mu.Lock()
	out := make([]SurfaceInfo, 0, len(h.surfaces))
	for _, s := range h.surfaces {
		out = append(out, s.info)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Surface returns a live surface.
func (h *Host) Surface(id schema.PanelID) (*Surface, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.surfaces[id]
	return s, ok
}

// Deliver hands a raw surface message to the surface's message hook.
func (h *Host) Deliver(ctx context.Context, id schema.PanelID, raw []byte) error {
	s, ok := h.Surface(id)
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrPanelDisposed, id)
	}
	s.mu.Lock()
	handler := s.onMessage
	s.mu.Unlock()
	if handler == nil {
		logx.Ctx(ctx).Debug("host surface message dropped", "panel", id, "reason", "no handler")
		return nil
	}
	handler(logx.ContextWithPanel(ctx, id), raw)
	return nil
}

// Dispose disposes a live surface.
func (h *Host) Dispose(id schema.PanelID) error {
	s, ok := h.Surface(id)
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrPanelDisposed, id)
	}
	s.Dispose()
	return nil
}

// Close disposes every live surface.
func (h *Host) Close() {
	h.mu.Lock()
	surfaces := make([]*Surface, 0, len(h.surfaces))
	for _, s := range h.surfaces {
		surfaces = append(surfaces, s)
	}
	h.mu.Unlock()
	for _, s := range surfaces {
		s.Dispose()
	}
}

func (h *Host) notify(event schema.Notification) {
	if h.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.sink.OnNotification(event)
}

func (h *Host) publish(event schema.PanelEvent) {
	if h.sink == nil {
		return
	}
	h.sink.OnPanelEvent(event)
}

func (h *Host) forget(id schema.PanelID) {
	h.mu.Lock()
	delete(h.surfaces, id)
	h.mu.Unlock()
}
