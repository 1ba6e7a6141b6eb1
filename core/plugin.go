package core

import (
	"context"

	"pkt.systems/rooboost/schema"
)

// Plugin is a same-process extension managed by the Registry.
type Plugin interface {
	Name() schema.PluginName
	Version() string
	Operations() []Operation
	Activate(ctx context.Context, rt *Runtime) error
	Deactivate(ctx context.Context) error
}

// DiagnosticsReceiver is implemented by plugins that want the shared diagnostic sink.
type DiagnosticsReceiver interface {
	SetDiagnostics(sink DiagnosticSink)
}

// OperationHandler runs an operation. The returned error is informational.
type OperationHandler func(ctx context.Context, rt *Runtime, args ...any) error

// Operation is a command declared by a plugin.
type Operation struct {
	ID      schema.OperationID
	Title   string
	Handler OperationHandler
}

// Runtime is what plugins see of the host process.
type Runtime struct {
	Host     Host
	Commands *CommandTable
}
