package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/schema"
)

type contextKey int

const (
	pluginKey contextKey = iota
	panelKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithPlugin annotates the logger with the plugin name if present.
func WithPlugin(ctx context.Context, name schema.PluginName) pslog.Logger {
	log := pslog.Ctx(ctx)
	if name != "" {
		if current, ok := ctx.Value(pluginKey).(schema.PluginName); ok && current == name {
			return log
		}
		log = log.With("plugin", name)
	}
	return log
}

// WithPluginPanel annotates the logger with plugin and panel identifiers.
func WithPluginPanel(ctx context.Context, name schema.PluginName, panelID schema.PanelID) pslog.Logger {
	log := WithPlugin(ctx, name)
	if panelID != "" {
		if current, ok := ctx.Value(panelKey).(schema.PanelID); ok && current == panelID {
			return log
		}
		log = log.With("panel", panelID)
	}
	return log
}

// WithSource annotates the logger with the source key and directory when available.
func WithSource(log pslog.Logger, source schema.SourceKey, dir string) pslog.Logger {
	if source != "" {
		log = log.With("source", source)
	}
	if dir != "" {
		log = log.With("dir", dir)
	}
	return log
}

// WithOperation annotates the logger with an operation id when available.
func WithOperation(log pslog.Logger, id schema.OperationID) pslog.Logger {
	if id != "" {
		log = log.With("operation", id)
	}
	return log
}

// ContextWithPlugin stores the plugin marker on the context for log de-duplication.
func ContextWithPlugin(ctx context.Context, name schema.PluginName) context.Context {
	if ctx == nil || name == "" {
		return ctx
	}
	return context.WithValue(ctx, pluginKey, name)
}

// ContextWithPanel stores the panel marker on the context for log de-duplication.
func ContextWithPanel(ctx context.Context, panelID schema.PanelID) context.Context {
	if ctx == nil || panelID == "" {
		return ctx
	}
	return context.WithValue(ctx, panelKey, panelID)
}

// ContextWithPluginLogger attaches the logger and plugin marker to the context.
func ContextWithPluginLogger(ctx context.Context, log pslog.Logger, name schema.PluginName) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithPlugin(ctx, name)
}

// CopyContextFields copies plugin/panel markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if name, ok := src.Value(pluginKey).(schema.PluginName); ok && name != "" {
		dst = ContextWithPlugin(dst, name)
	}
	if panelID, ok := src.Value(panelKey).(schema.PanelID); ok && panelID != "" {
		dst = ContextWithPanel(dst, panelID)
	}
	return dst
}
