package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

// maxCommandDepth bounds executeCommand chains between manifest commands.
const maxCommandDepth = 8

type depthKey struct{}

// Plugin runs a Manifest against the host.
type Plugin struct {
	manifest Manifest
	source   string

	mu   sync.Mutex
	rt   *core.Runtime
	sink core.DiagnosticSink
}

var (
	_ core.Plugin              = (*Plugin)(nil)
	_ core.DiagnosticsReceiver = (*Plugin)(nil)
)

// NewPlugin wraps a validated manifest. source is the file it came from.
func NewPlugin(m Manifest, source string) *Plugin {
	return &Plugin{manifest: m, source: source}
}

// Source returns the manifest path.
func (p *Plugin) Source() string { return p.source }

func (p *Plugin) Name() schema.PluginName { return p.manifest.Name }
func (p *Plugin) Version() string         { return p.manifest.Version }

// SetDiagnostics receives the shared diagnostic sink.
func (p *Plugin) SetDiagnostics(sink core.DiagnosticSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// Operations returns one operation per manifest command.
func (p *Plugin) Operations() []core.Operation {
	ops := make([]core.Operation, 0, len(p.manifest.Commands))
	for _, cmd := range p.manifest.Commands {
		actions := cmd.Actions
		title := cmd.Title
		if title == "" {
			title = string(cmd.ID)
		}
		ops = append(ops, core.Operation{
			ID:    cmd.ID,
			Title: title,
			Handler: func(ctx context.Context, rt *core.Runtime, args ...any) error {
				return p.run(ctx, rt, actions, args)
			},
		})
	}
	return ops
}

// Activate runs the activate hook.
func (p *Plugin) Activate(ctx context.Context, rt *core.Runtime) error {
	p.mu.Lock()
	p.rt = rt
	p.mu.Unlock()
	return p.run(ctx, rt, p.manifest.Activate, nil)
}

// Deactivate runs the deactivate hook with the runtime seen at activation.
func (p *Plugin) Deactivate(ctx context.Context) error {
	p.mu.Lock()
	rt := p.rt
	p.mu.Unlock()
	if rt == nil {
		return nil
	}
	return p.run(ctx, rt, p.manifest.Deactivate, nil)
}

func (p *Plugin) run(ctx context.Context, rt *core.Runtime, actions []Action, args []any) error {
	log := logx.WithPlugin(ctx, p.manifest.Name)
	for i, a := range actions {
		if err := p.do(ctx, rt, a, args); err != nil {
			log.Warn("manifest action failed", "index", i, "action", a.Action, "err", err)
			return fmt.Errorf("%s step %d: %w", a.Action, i, err)
		}
		log.Trace("manifest action ok", "index", i, "action", a.Action)
	}
	return nil
}

func (p *Plugin) do(ctx context.Context, rt *core.Runtime, a Action, args []any) error {
	if rt == nil || rt.Host == nil {
		return errors.New("no host")
	}
	switch a.Action {
	case ActionShowInformation:
		rt.Host.ShowInfo(ctx, expandArgs(a.Message, args))
	case ActionShowError:
		rt.Host.ShowError(ctx, expandArgs(a.Message, args))
	case ActionOpenWorkspace:
		return rt.Host.OpenWorkspace(ctx, expandArgs(a.Path, args))
	case ActionAppendDiagnostic:
		sink := p.diagnostics(rt, a.Channel)
		if sink == nil {
			return errors.New("no diagnostic sink")
		}
		sink.AppendLine(expandArgs(a.Message, args))
	case ActionExecuteCommand:
		depth, _ := ctx.Value(depthKey{}).(int)
		if depth >= maxCommandDepth {
			return fmt.Errorf("command chain deeper than %d", maxCommandDepth)
		}
		if rt.Commands == nil {
			return errors.New("no command table")
		}
		callArgs := make([]any, 0, len(a.Args))
		for _, arg := range a.Args {
			callArgs = append(callArgs, expandArgs(arg, args))
		}
		return rt.Commands.Execute(context.WithValue(ctx, depthKey{}, depth+1), a.Command, callArgs...)
	default:
		return fmt.Errorf("%w: unsupported action %q", schema.ErrPluginShapeInvalid, a.Action)
	}
	return nil
}

func (p *Plugin) diagnostics(rt *core.Runtime, channel string) core.DiagnosticSink {
	if channel != "" {
		return rt.Host.DiagnosticSink(channel)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink
}

// expandArgs replaces $1..$9 with the operation arguments. Other references
// are left as written.
func expandArgs(text string, args []any) string {
	return os.Expand(text, func(key string) string {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 {
			return "$" + key
		}
		if n > len(args) {
			return ""
		}
		return fmt.Sprint(args[n-1])
	})
}
