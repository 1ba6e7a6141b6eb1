package tui

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/rooboost/internal/eventbus"
	"pkt.systems/rooboost/internal/protocol"
	"pkt.systems/rooboost/schema"
)

type fakeHost struct {
	mu       sync.Mutex
	requests []protocol.Request
	disposed []schema.PanelID
}

func (h *fakeHost) Deliver(_ context.Context, _ schema.PanelID, raw []byte) error {
	req, err := protocol.Decode(raw)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) Dispose(id schema.PanelID) error {
	h.mu.Lock()
	h.disposed = append(h.disposed, id)
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) last(t *testing.T) protocol.Request {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		t.Fatalf("expected a delivered request")
	}
	return h.requests[len(h.requests)-1]
}

var sources = []schema.SourceKey{"rooveterinaryinc.roo-cline", "saoudrizwan.claude-dev", "other.ext"}

func newModel(t *testing.T) (Model, *fakeHost, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(nil)
	host := &fakeHost{}
	m := New(context.Background(), Config{Panel: "p1", Title: "Task Browser", Sources: sources}, bus, host)
	t.Cleanup(m.Close)
	return m, host, bus
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press applies a key and runs the resulting command, if any, feeding its
// message back into the model.
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(key(s))
	m = next.(Model)
	if cmd != nil {
		msg := cmd()
		if _, quit := msg.(tea.QuitMsg); quit {
			return m
		}
		next, _ = m.Update(msg)
		m = next.(Model)
	}
	return m
}

func receive(t *testing.T, m Model) Model {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- m.wait()() }()
	select {
	case msg := <-done:
		next, _ := m.Update(msg)
		return next.(Model)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for event")
		return m
	}
}

func publishTasks(t *testing.T, bus *eventbus.Bus, tasks []schema.TaskRecord) {
	t.Helper()
	raw, err := protocol.Encode(protocol.ShowTasks(tasks, "Successfully loaded tasks"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bus.OnPanelEvent(schema.PanelEvent{Panel: "p1", Type: schema.PanelMessage, Payload: raw})
}

func sampleTasks() []schema.TaskRecord {
	now := time.Now()
	return []schema.TaskRecord{
		{ID: "aaaaaaaa-1", Path: "/tasks/a", SummaryMessage: "fix the build", ProjectName: "zeta", ModifiedAt: now},
		{ID: "bbbbbbbb-2", Path: "/tasks/b", SummaryMessage: "write docs", ProjectName: "Alpha", ModifiedAt: now.Add(-time.Hour)},
	}
}

func TestModelRendersListingFromBus(t *testing.T) {
	m, _, bus := newModel(t)
	if !strings.Contains(m.View(), "Loading tasks...") {
		t.Fatalf("expected loading placeholder, got:\n%s", m.View())
	}
	publishTasks(t, bus, sampleTasks())
	m = receive(t, m)
	view := m.View()
	for _, want := range []string{"fix the build", "write docs", "aaaaaaaa", "Debug: Successfully loaded tasks"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if !reflect.DeepEqual(m.projects, []string{"Alpha", "zeta"}) {
		t.Fatalf("expected case-insensitive project order, got %v", m.projects)
	}
}

func TestModelProjectFilter(t *testing.T) {
	m, _, bus := newModel(t)
	publishTasks(t, bus, sampleTasks())
	m = receive(t, m)
	m = press(t, m, "p")
	view := m.View()
	if !strings.Contains(view, "write docs") || strings.Contains(view, "fix the build") {
		t.Fatalf("expected only Alpha tasks:\n%s", view)
	}
	m = press(t, m, "p")
	m = press(t, m, "p")
	if m.project != "" || len(m.visible()) != 2 {
		t.Fatalf("expected filter to cycle back to all, got %q", m.project)
	}
}

func TestModelSendsRequests(t *testing.T) {
	m, host, bus := newModel(t)
	publishTasks(t, bus, sampleTasks())
	m = receive(t, m)

	m = press(t, m, "r")
	if _, ok := host.last(t).(protocol.LoadTasks); !ok {
		t.Fatalf("expected loadTasks, got %#v", host.last(t))
	}

	m = press(t, m, "j")
	m = press(t, m, "enter")
	if got, want := host.last(t), (protocol.ViewTask{TaskPath: "/tasks/b"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	m = press(t, m, "x")
	m = press(t, m, "m")
	want := protocol.MoveTasks{TaskPaths: []string{"/tasks/b"}, TargetSource: "saoudrizwan.claude-dev"}
	if got := host.last(t); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	m = press(t, m, "a")
	m = press(t, m, "d")
	if !m.confirmDelete {
		t.Fatalf("expected delete confirmation")
	}
	m = press(t, m, "y")
	if got, want := host.last(t), (protocol.DeleteTasks{TaskPaths: []string{"/tasks/a", "/tasks/b"}}); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	m = press(t, m, "s")
	if got, want := host.last(t), (protocol.SelectSource{Source: "saoudrizwan.claude-dev"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	if m.target != "other.ext" {
		t.Fatalf("expected target to skip the current source, got %s", m.target)
	}
}

func TestModelDeleteCanBeCancelled(t *testing.T) {
	m, host, bus := newModel(t)
	publishTasks(t, bus, sampleTasks())
	m = receive(t, m)
	m = press(t, m, "d")
	m = press(t, m, "n")
	if m.confirmDelete {
		t.Fatalf("expected confirmation cleared")
	}
	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.requests) != 0 {
		t.Fatalf("expected no requests, got %#v", host.requests)
	}
}

func TestModelShowsErrorsAndNotifications(t *testing.T) {
	m, _, bus := newModel(t)
	raw, err := protocol.Encode(protocol.ShowError("Could not load tasks: Directory does not exist: /x", "Failed to load tasks from /x"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bus.OnPanelEvent(schema.PanelEvent{Panel: "p1", Type: schema.PanelMessage, Payload: raw})
	m = receive(t, m)
	bus.OnNotification(schema.Notification{Level: schema.NotifyIntent, Message: "delete 1 task(s)"})
	m = receive(t, m)
	view := m.View()
	for _, want := range []string{"Directory does not exist", "Debug: Failed to load tasks from /x", "[intent] delete 1 task(s)"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestModelQuitDisposesPanel(t *testing.T) {
	m, host, _ := newModel(t)
	next, cmd := m.Update(key("q"))
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
	if !reflect.DeepEqual(host.disposed, []schema.PanelID{"p1"}) {
		t.Fatalf("expected panel disposed, got %v", host.disposed)
	}
	if m.View() != "" {
		t.Fatalf("expected empty view after quit")
	}
}

func TestModelQuitsWhenPanelDisposed(t *testing.T) {
	m, _, bus := newModel(t)
	bus.OnPanelEvent(schema.PanelEvent{Panel: "p1", Type: schema.PanelDispose})
	msg := m.wait()()
	next, cmd := m.Update(msg)
	if !next.(Model).closed || cmd == nil {
		t.Fatalf("expected model to close on dispose")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}
