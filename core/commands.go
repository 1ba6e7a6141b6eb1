package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

// BoundHandler is an operation handler already closed over its runtime.
type BoundHandler func(ctx context.Context, args ...any) error

// CommandInfo describes a bound command.
type CommandInfo struct {
	ID    schema.OperationID `json:"id"`
	Title string             `json:"title"`
	Owner string             `json:"owner"`
}

type binding struct {
	info    CommandInfo
	handler BoundHandler
}

// CommandTable maps operation ids to handlers. It is append-only for the life
// of the process: there is no unregister.
type CommandTable struct {
	mu       sync.RWMutex
	bindings map[schema.OperationID]binding
	order    []schema.OperationID
}

// NewCommandTable constructs an empty table.
func NewCommandTable() *CommandTable {
	return &CommandTable{bindings: make(map[schema.OperationID]binding)}
}

// BoundOperation is one entry of a RegisterAll batch.
type BoundOperation struct {
	ID      schema.OperationID
	Title   string
	Handler BoundHandler
}

// Register binds id to handler on behalf of owner. Re-registering an id by the
// same owner keeps the first binding; another owner gets ErrDuplicateOperation.
func (t *CommandTable) Register(owner string, id schema.OperationID, title string, handler BoundHandler) error {
	return t.RegisterAll(owner, []BoundOperation{{ID: id, Title: title, Handler: handler}})
}

// RegisterAll binds ops on behalf of owner, all or nothing: every id is checked
// before any is inserted.
func (t *CommandTable) RegisterAll(owner string, ops []BoundOperation) error {
	for _, op := range ops {
		if strings.TrimSpace(string(op.ID)) == "" {
			return fmt.Errorf("%w: empty operation id", schema.ErrInvalidRequest)
		}
		if op.Handler == nil {
			return fmt.Errorf("%w: operation %s has no handler", schema.ErrInvalidRequest, op.ID)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range ops {
		if existing, ok := t.bindings[op.ID]; ok && existing.info.Owner != owner {
			return fmt.Errorf("%w: %s (bound by %s)", schema.ErrDuplicateOperation, op.ID, existing.info.Owner)
		}
	}
	for _, op := range ops {
		if _, ok := t.bindings[op.ID]; ok {
			continue
		}
		t.bindings[op.ID] = binding{
			info:    CommandInfo{ID: op.ID, Title: op.Title, Owner: owner},
			handler: op.Handler,
		}
		t.order = append(t.order, op.ID)
	}
	return nil
}

// release drops every binding held by owner. It only backs out a failed
// activation; the table exposes no unregister.
func (t *CommandTable) release(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.order[:0]
	for _, id := range t.order {
		if t.bindings[id].info.Owner == owner {
			delete(t.bindings, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

// Execute runs the handler bound to id.
func (t *CommandTable) Execute(ctx context.Context, id schema.OperationID, args ...any) error {
	t.mu.RLock()
	b, ok := t.bindings[id]
	t.mu.RUnlock()
	log := logx.WithOperation(pslog.Ctx(ctx), id)
	if !ok {
		log.Warn("command unknown")
		return fmt.Errorf("%w: %s", schema.ErrUnknownOperation, id)
	}
	log.Debug("command execute", "owner", b.info.Owner, "args", len(args))
	if err := b.handler(ctx, args...); err != nil {
		log.Warn("command failed", "owner", b.info.Owner, "err", err)
		return err
	}
	return nil
}

// Has reports whether id is bound.
func (t *CommandTable) Has(id schema.OperationID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.bindings[id]
	return ok
}

// List returns bound commands in registration order.
func (t *CommandTable) List() []CommandInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CommandInfo, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.bindings[id].info)
	}
	return out
}

// Suggest returns up to limit bound ids closest to input by edit distance.
func (t *CommandTable) Suggest(input string, limit int) []schema.OperationID {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || limit <= 0 {
		return nil
	}
	type scored struct {
		id   schema.OperationID
		dist int
	}
	t.mu.RLock()
	candidates := make([]scored, 0, len(t.order))
	for _, id := range t.order {
		name := strings.ToLower(string(id))
		dist := levenshtein.ComputeDistance(input, name)
		// Also score against the part after the namespace dot.
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			if d := levenshtein.ComputeDistance(input, name[idx+1:]); d < dist {
				dist = d
			}
		}
		candidates = append(candidates, scored{id: id, dist: dist})
	}
	t.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	threshold := len(input)/2 + 1
	out := make([]schema.OperationID, 0, limit)
	for _, c := range candidates {
		if c.dist > threshold || len(out) == limit {
			break
		}
		out = append(out, c.id)
	}
	return out
}

// Resolve maps name to a bound id, exactly first and then ignoring case.
func (t *CommandTable) Resolve(name string) (schema.OperationID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.bindings[schema.OperationID(name)]; ok {
		return schema.OperationID(name), true
	}
	for _, id := range t.order {
		if strings.EqualFold(string(id), name) {
			return id, true
		}
	}
	return "", false
}
