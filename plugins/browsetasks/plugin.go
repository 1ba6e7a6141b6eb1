// Package browsetasks is the built-in task browser plugin.
package browsetasks

import (
	"context"
	"sync"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/taskpanel"
	"pkt.systems/rooboost/schema"
)

const (
	Name      schema.PluginName  = "Browse Tasks"
	Version                      = "1.0.0"
	Operation schema.OperationID = "rooboost.browseTasks"
	ViewType                     = "rooboostTaskBrowser"
	Title                        = "RooBoost Task Browser"
)

// Plugin shows the task browser panel on activation and on its operation.
type Plugin struct {
	loader        taskpanel.Scanner
	defaultSource schema.SourceKey
	opts          []taskpanel.Option

	mu    sync.Mutex
	panel *taskpanel.Panel
	sink  core.DiagnosticSink
}

// New constructs the plugin. defaultSource may be empty.
func New(loader taskpanel.Scanner, defaultSource schema.SourceKey, opts ...taskpanel.Option) *Plugin {
	return &Plugin{loader: loader, defaultSource: defaultSource, opts: opts}
}

func (p *Plugin) Name() schema.PluginName { return Name }
func (p *Plugin) Version() string         { return Version }

func (p *Plugin) Operations() []core.Operation {
	return []core.Operation{{
		ID:    Operation,
		Title: "RooBoost: Browse Tasks",
		Handler: func(ctx context.Context, rt *core.Runtime, _ ...any) error {
			return p.ensurePanel(rt.Host).Show(ctx)
		},
	}}
}

// SetDiagnostics receives the shared diagnostic sink.
func (p *Plugin) SetDiagnostics(sink core.DiagnosticSink) {
	p.mu.Lock()
	p.sink = sink
	panel := p.panel
	p.mu.Unlock()
	if panel != nil {
		panel.SetDiagnostics(sink)
	}
}

func (p *Plugin) Activate(ctx context.Context, rt *core.Runtime) error {
	return p.ensurePanel(rt.Host).Show(ctx)
}

func (p *Plugin) Deactivate(context.Context) error {
	p.mu.Lock()
	panel := p.panel
	p.mu.Unlock()
	if panel != nil {
		panel.Dispose()
	}
	return nil
}

// Panel returns the panel, or nil before first activation.
func (p *Plugin) Panel() *taskpanel.Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.panel
}

func (p *Plugin) ensurePanel(host core.Host) *taskpanel.Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panel == nil {
		p.panel = taskpanel.New(taskpanel.Config{
			Owner:         Name,
			ViewType:      ViewType,
			Title:         Title,
			DefaultSource: p.defaultSource,
		}, host, p.loader, p.opts...)
		if p.sink != nil {
			p.panel.SetDiagnostics(p.sink)
		}
	}
	return p.panel
}
