package core

import (
	"context"

	"pkt.systems/rooboost/schema"
)

// Host is the capability surface the embedding application provides.
type Host interface {
	// OpenWorkspace opens a directory as a workspace.
	OpenWorkspace(ctx context.Context, path string) error
	ShowInfo(ctx context.Context, message string)
	ShowError(ctx context.Context, message string)
	// CreateSurface opens a new UI surface.
	CreateSurface(ctx context.Context, opts SurfaceOptions) (Surface, error)
	// DiagnosticSink returns the named output channel, creating it on first use.
	DiagnosticSink(name string) DiagnosticSink
	// ForwardIntent hands a validated move/delete request to the host. The core never mutates task directories.
	ForwardIntent(ctx context.Context, intent schema.Intent) error
}

// SurfaceOptions describes a UI surface to create.
type SurfaceOptions struct {
	ViewType string
	Title    string
}

// MessageHandler receives raw messages posted by a surface.
type MessageHandler func(ctx context.Context, raw []byte)

// Surface is one live UI panel.
type Surface interface {
	ID() schema.PanelID
	// Post delivers a host message to the surface.
	Post(ctx context.Context, message any) error
	Reveal()
	// Dispose closes the surface. Dispose hooks run once.
	Dispose()
	OnDidDispose(fn func())
	OnDidReceiveMessage(fn MessageHandler)
}

// DiagnosticSink is a named, append-only output channel.
type DiagnosticSink interface {
	Name() string
	AppendLine(line string)
	Show()
}
