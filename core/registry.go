package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

// PluginState is the lifecycle state of a registry entry.
type PluginState string

const (
	StateRegistered  PluginState = "registered"
	StateActivating  PluginState = "activating"
	StateActive      PluginState = "active"
	StateFailed      PluginState = "failed"
	StateDeactivated PluginState = "deactivated"
)

// PluginStatus reports one registry entry.
type PluginStatus struct {
	Name    schema.PluginName `json:"name"`
	Version string            `json:"version"`
	State   PluginState       `json:"state"`
	Error   string            `json:"error,omitempty"`
}

type entry struct {
	plugin Plugin
	owner  string
	state  PluginState
	err    error
}

// Registry holds installed plugins in registration order and drives their lifecycle.
type Registry struct {
	mu       sync.Mutex
	entries  []*entry
	seq      int
	commands *CommandTable
	sink     DiagnosticSink
}

// NewRegistry constructs a registry binding into commands. sink is shared with
// every plugin that implements DiagnosticsReceiver and may be nil.
func NewRegistry(commands *CommandTable, sink DiagnosticSink) *Registry {
	if commands == nil {
		commands = NewCommandTable()
	}
	return &Registry{commands: commands, sink: sink}
}

// Commands returns the table operations are bound into.
func (r *Registry) Commands() *CommandTable {
	return r.commands
}

// Register appends a plugin. Duplicate names are accepted; each entry is
// activated independently.
func (r *Registry) Register(p Plugin) {
	if p == nil {
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, r.newEntryLocked(p, StateRegistered))
	r.mu.Unlock()
}

func (r *Registry) newEntryLocked(p Plugin, state PluginState) *entry {
	r.seq++
	return &entry{plugin: p, owner: fmt.Sprintf("%s#%d", p.Name(), r.seq), state: state}
}

// Activate registers p and activates it alone. When activation fails the entry
// is removed again, so a failed load leaves nothing behind. Other entries are
// not touched.
func (r *Registry) Activate(ctx context.Context, rt *Runtime, p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", schema.ErrPluginActivation)
	}
	rt = r.runtime(rt)
	r.mu.Lock()
	e := r.newEntryLocked(p, StateActivating)
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	err := r.activate(ctx, rt, e)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		for i, candidate := range r.entries {
			if candidate == e {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				break
			}
		}
		return err
	}
	e.state = StateActive
	return nil
}

func (r *Registry) runtime(rt *Runtime) *Runtime {
	if rt == nil {
		rt = &Runtime{}
	}
	if rt.Commands == nil {
		rt.Commands = r.commands
	}
	return rt
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Status reports every entry in registration order.
func (r *Registry) Status() []PluginStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PluginStatus, 0, len(r.entries))
	for _, e := range r.entries {
		st := PluginStatus{Name: e.plugin.Name(), Version: e.plugin.Version(), State: e.state}
		if e.err != nil {
			st.Error = e.err.Error()
		}
		out = append(out, st)
	}
	return out
}

// ActivateAll activates every entry that is not already active, in registration
// order. A failing plugin is logged and recorded; the remaining plugins still
// activate. The returned error joins this call's failures.
func (r *Registry) ActivateAll(ctx context.Context, rt *Runtime) error {
	rt = r.runtime(rt)
	r.mu.Lock()
	pending := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state == StateActive || e.state == StateActivating {
			continue
		}
		e.state = StateActivating
		pending = append(pending, e)
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range pending {
		err := r.activate(ctx, rt, e)
		r.mu.Lock()
		if err != nil {
			e.state = StateFailed
			e.err = err
		} else {
			e.state = StateActive
			e.err = nil
		}
		r.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) activate(ctx context.Context, rt *Runtime, e *entry) (err error) {
	p := e.plugin
	log := logx.WithPlugin(ctx, p.Name())
	ctx = logx.ContextWithPluginLogger(ctx, log, p.Name())
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: panic: %v", schema.ErrPluginActivation, p.Name(), rec)
		}
		if err != nil {
			rt.Commands.release(e.owner)
			log.Error("plugin activate failed", "err", err)
		}
	}()

	ops := p.Operations()
	bound := make([]BoundOperation, 0, len(ops))
	for _, op := range ops {
		bound = append(bound, BoundOperation{ID: op.ID, Title: op.Title, Handler: bind(op, rt)})
	}
	if err := rt.Commands.RegisterAll(e.owner, bound); err != nil {
		return fmt.Errorf("%w: %s: %w", schema.ErrPluginActivation, p.Name(), err)
	}
	log.Debug("plugin operations bound", "operations", len(bound))
	if recv, ok := p.(DiagnosticsReceiver); ok && r.sink != nil {
		recv.SetDiagnostics(r.sink)
	}
	if err := p.Activate(ctx, rt); err != nil {
		return fmt.Errorf("%w: %s: %w", schema.ErrPluginActivation, p.Name(), err)
	}
	log.Info("plugin active", "version", p.Version(), "operations", len(p.Operations()))
	return nil
}

func bind(op Operation, rt *Runtime) BoundHandler {
	handler := op.Handler
	return func(ctx context.Context, args ...any) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("operation %s panicked: %v", op.ID, rec)
			}
		}()
		if handler == nil {
			return nil
		}
		return handler(ctx, rt, args...)
	}
}

// DeactivateAll deactivates every entry that attempted activation, in
// registration order, isolating failures. Bound commands stay bound.
func (r *Registry) DeactivateAll(ctx context.Context) error {
	r.mu.Lock()
	targets := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state == StateActive || e.state == StateFailed {
			targets = append(targets, e)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range targets {
		err := deactivate(ctx, e.plugin)
		r.mu.Lock()
		e.state = StateDeactivated
		r.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deactivate(ctx context.Context, p Plugin) (err error) {
	log := logx.WithPlugin(ctx, p.Name())
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("deactivate %s: panic: %v", p.Name(), rec)
		}
		if err != nil {
			log.Error("plugin deactivate failed", "err", err)
			return
		}
		log.Info("plugin deactivated")
	}()
	if err := p.Deactivate(ctx); err != nil {
		return fmt.Errorf("deactivate %s: %w", p.Name(), err)
	}
	return nil
}
