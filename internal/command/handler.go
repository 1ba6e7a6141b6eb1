// Package command runs operations typed into a command palette.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

const suggestionLimit = 3

// HandlerConfig configures palette behaviour.
type HandlerConfig struct {
	DisableAuditLogging bool
}

// Result reports what a palette line resolved to.
type Result struct {
	Operation   schema.OperationID   `json:"operation,omitempty"`
	Args        []string             `json:"args,omitempty"`
	Suggestions []schema.OperationID `json:"suggestions,omitempty"`
}

// Handler routes palette lines to the command table.
type Handler struct {
	commands *core.CommandTable
	cfg      HandlerConfig
}

// NewHandler constructs a palette handler.
func NewHandler(commands *core.CommandTable, cfg HandlerConfig) *Handler {
	return &Handler{commands: commands, cfg: cfg}
}

// Handle parses input as "[/]operation args..." and executes the operation.
// When the operation is unknown the result carries did-you-mean suggestions.
func (h *Handler) Handle(ctx context.Context, input string) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx).With("input_len", len(input))
	cmd := ParseLine(input)
	if !h.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "palette", "command", strings.TrimSpace(input))
	}
	if cmd.Name == "" {
		log.Warn("command palette rejected", "reason", "empty")
		return Result{}, fmt.Errorf("%w: empty command", schema.ErrInvalidRequest)
	}
	id, ok := h.commands.Resolve(cmd.Name)
	if !ok {
		suggestions := h.commands.Suggest(cmd.Name, suggestionLimit)
		log.Info("command palette unknown", "command", cmd.Name, "suggestions", len(suggestions))
		return Result{Suggestions: suggestions}, fmt.Errorf("%w: %s", schema.ErrUnknownOperation, cmd.Name)
	}
	log = log.With("command", id, "args", len(cmd.Args))
	log.Info("command palette request")
	args := make([]any, 0, len(cmd.Args))
	for _, arg := range cmd.Args {
		args = append(args, arg)
	}
	result := Result{Operation: id, Args: cmd.Args}
	if err := h.commands.Execute(ctx, id, args...); err != nil {
		return result, err
	}
	return result, nil
}
