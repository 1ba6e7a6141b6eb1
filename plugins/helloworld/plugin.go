// Package helloworld is the sample plugin shipped with rooboost.
package helloworld

import (
	"context"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/schema"
)

const (
	Name    schema.PluginName = "Hello World"
	Version                   = "1.0.0"
	Channel                   = "Hello World"

	SayHello   schema.OperationID = "helloWorld.sayHello"
	ShowOutput schema.OperationID = "helloWorld.showOutput"

	Greeting = "Hello World from RooBoost!"
)

// Plugin greets the user and writes to its own output channel.
type Plugin struct{}

// New constructs the plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() schema.PluginName { return Name }
func (*Plugin) Version() string         { return Version }

func (*Plugin) Operations() []core.Operation {
	return []core.Operation{
		{
			ID:    SayHello,
			Title: "Hello World: Say Hello",
			Handler: func(ctx context.Context, rt *core.Runtime, _ ...any) error {
				rt.Host.ShowInfo(ctx, Greeting)
				return nil
			},
		},
		{
			ID:    ShowOutput,
			Title: "Hello World: Show Output",
			Handler: func(ctx context.Context, rt *core.Runtime, _ ...any) error {
				sink := rt.Host.DiagnosticSink(Channel)
				sink.AppendLine(Greeting)
				sink.Show()
				return nil
			},
		},
	}
}

func (*Plugin) Activate(ctx context.Context, rt *core.Runtime) error {
	rt.Host.DiagnosticSink(Channel).AppendLine("Hello World plugin activated")
	return nil
}

func (*Plugin) Deactivate(context.Context) error { return nil }
