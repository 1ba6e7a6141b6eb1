// Package taskpanel mediates between a task browser UI surface, the task
// loader, and the host.
package taskpanel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/internal/protocol"
	"pkt.systems/rooboost/internal/taskloader"
	"pkt.systems/rooboost/schema"
)

// State is the panel lifecycle flag.
type State int

const (
	Unopened State = iota
	Open
	Disposed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Disposed:
		return "disposed"
	default:
		return "unopened"
	}
}

// Scanner loads task records for a source.
type Scanner interface {
	Dir(source schema.SourceKey) (string, error)
	Scan(ctx context.Context, source schema.SourceKey) ([]schema.TaskRecord, error)
}

// SourceStore remembers the selected source across panel instances.
type SourceStore interface {
	LastSource() (schema.SourceKey, bool)
	SetLastSource(source schema.SourceKey) error
}

// Config describes the panel.
type Config struct {
	Owner         schema.PluginName
	ViewType      string
	Title         string
	DefaultSource schema.SourceKey
}

// Option customizes a Panel.
type Option func(*Panel)

// WithSourceStore persists source selections.
func WithSourceStore(store SourceStore) Option {
	return func(p *Panel) { p.store = store }
}

// Panel owns at most one live surface.
type Panel struct {
	cfg    Config
	host   core.Host
	loader Scanner
	store  SourceStore

	mu      sync.Mutex
	surface core.Surface
	state   State
	source  schema.SourceKey
	sink    core.DiagnosticSink
}

// New constructs an unopened panel.
func New(cfg Config, host core.Host, loader Scanner, opts ...Option) *Panel {
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = schema.DefaultSource
	}
	p := &Panel{cfg: cfg, host: host, loader: loader, source: cfg.DefaultSource}
	for _, opt := range opts {
		opt(p)
	}
	if p.store != nil {
		if last, ok := p.store.LastSource(); ok && taskloader.ValidateSource(last) == nil {
			p.source = last
		}
	}
	return p
}

// SetDiagnostics sets the sink revealed after each successful load.
func (p *Panel) SetDiagnostics(sink core.DiagnosticSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// State returns the lifecycle flag.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Source returns the currently selected source.
func (p *Panel) Source() schema.SourceKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// SurfaceID returns the live surface id, if any.
func (p *Panel) SurfaceID() (schema.PanelID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.surface == nil {
		return "", false
	}
	return p.surface.ID(), true
}

// Show creates the surface on first use (or after disposal) and reveals it otherwise.
func (p *Panel) Show(ctx context.Context) error {
	p.mu.Lock()
	if existing := p.surface; existing != nil {
		p.mu.Unlock()
		logx.WithPluginPanel(ctx, p.cfg.Owner, existing.ID()).Debug("panel reveal")
		existing.Reveal()
		return nil
	}
	surface, err := p.host.CreateSurface(ctx, core.SurfaceOptions{ViewType: p.cfg.ViewType, Title: p.cfg.Title})
	if err != nil {
		p.mu.Unlock()
		logx.WithPlugin(ctx, p.cfg.Owner).Warn("panel create failed", "err", err)
		return err
	}
	p.surface = surface
	p.state = Open
	surface.OnDidDispose(func() {
		p.mu.Lock()
		if p.surface == surface {
			p.surface = nil
			p.state = Disposed
		}
		p.mu.Unlock()
	})
	surface.OnDidReceiveMessage(func(ctx context.Context, raw []byte) {
		_ = p.HandleMessage(ctx, raw)
	})
	source := p.source
	p.mu.Unlock()
	logx.WithPluginPanel(ctx, p.cfg.Owner, surface.ID()).Info("panel open", "source", source)
	surface.Reveal()
	return nil
}

// Dispose disposes the tracked surface if present.
func (p *Panel) Dispose() {
	p.mu.Lock()
	surface := p.surface
	p.mu.Unlock()
	if surface != nil {
		surface.Dispose()
	}
}

// HandleMessage decodes and serves one surface message.
func (p *Panel) HandleMessage(ctx context.Context, raw []byte) error {
	panelID, _ := p.SurfaceID()
	log := logx.WithPluginPanel(ctx, p.cfg.Owner, panelID)
	req, err := protocol.Decode(raw)
	if err != nil {
		log.Warn("panel request rejected", "err", err)
		p.host.ShowError(ctx, fmt.Sprintf("Invalid request: %v", err))
		return err
	}
	log.Debug("panel request", "command", req.Command())
	switch r := req.(type) {
	case protocol.LoadTasks:
		return p.load(ctx, p.Source())
	case protocol.SelectSource:
		if err := taskloader.ValidateSource(r.Source); err != nil {
			err = fmt.Errorf("%w: %w", schema.ErrInvalidRequest, err)
			log.Warn("panel request rejected", "err", err)
			p.host.ShowError(ctx, fmt.Sprintf("Invalid request: %v", err))
			return err
		}
		p.mu.Lock()
		p.source = r.Source
		p.mu.Unlock()
		if p.store != nil {
			if err := p.store.SetLastSource(r.Source); err != nil {
				log.Warn("panel source persist failed", "err", err)
			}
		}
		return p.load(ctx, r.Source)
	case protocol.ViewTask:
		if err := p.host.OpenWorkspace(ctx, r.TaskPath); err != nil {
			log.Warn("panel view failed", "path", r.TaskPath, "err", err)
			p.host.ShowError(ctx, fmt.Sprintf("Could not open task: %v", err))
			return err
		}
		log.Info("panel view", "path", r.TaskPath)
		return nil
	case protocol.MoveTasks:
		if err := taskloader.ValidateSource(r.TargetSource); err != nil {
			err = fmt.Errorf("%w: %w", schema.ErrInvalidRequest, err)
			log.Warn("panel request rejected", "err", err)
			p.host.ShowError(ctx, fmt.Sprintf("Invalid request: %v", err))
			return err
		}
		return p.forward(ctx, schema.Intent{Kind: schema.IntentMove, Panel: panelID, TaskPaths: r.TaskPaths, TargetSource: r.TargetSource})
	case protocol.DeleteTasks:
		return p.forward(ctx, schema.Intent{Kind: schema.IntentDelete, Panel: panelID, TaskPaths: r.TaskPaths})
	default:
		return fmt.Errorf("%w: unhandled command %s", schema.ErrInvalidRequest, req.Command())
	}
}

// Refresh rescans the current source and posts the result.
func (p *Panel) Refresh(ctx context.Context) error {
	return p.load(ctx, p.Source())
}

func (p *Panel) load(ctx context.Context, source schema.SourceKey) error {
	dir, dirErr := p.loader.Dir(source)
	if dirErr != nil {
		dir = string(source)
	}
	tasks, err := p.loader.Scan(ctx, source)
	if err != nil {
		message := protocol.ShowError(
			fmt.Sprintf("Could not load tasks: %v", err),
			fmt.Sprintf("Failed to load tasks from %s", dir),
		)
		if postErr := p.post(ctx, message); postErr != nil {
			return errors.Join(err, postErr)
		}
		return err
	}
	message := protocol.ShowTasks(tasks, fmt.Sprintf("Successfully loaded %d tasks from %s", len(tasks), dir))
	if err := p.post(ctx, message); err != nil {
		return err
	}
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink != nil {
		sink.Show()
	}
	return nil
}

func (p *Panel) post(ctx context.Context, message any) error {
	p.mu.Lock()
	surface := p.surface
	p.mu.Unlock()
	if surface == nil {
		logx.WithPlugin(ctx, p.cfg.Owner).Debug("panel post dropped", "reason", "no surface")
		return schema.ErrPanelDisposed
	}
	return surface.Post(ctx, message)
}

func (p *Panel) forward(ctx context.Context, intent schema.Intent) error {
	log := logx.WithPluginPanel(ctx, p.cfg.Owner, intent.Panel)
	if err := p.host.ForwardIntent(ctx, intent); err != nil {
		log.Warn("panel intent failed", "kind", intent.Kind, "err", err)
		p.host.ShowError(ctx, fmt.Sprintf("Could not %s tasks: %v", intent.Kind, err))
		return err
	}
	log.Info("panel intent forwarded", "kind", intent.Kind, "tasks", len(intent.TaskPaths), "target", intent.TargetSource)
	return nil
}
