package taskpanel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/taskloader"
	"pkt.systems/rooboost/schema"
)

type fakeSurface struct {
	id       schema.PanelID
	mu       sync.Mutex
	posted   []any
	reveals  int
	disposed bool
	onDisp   []func()
	onMsg    core.MessageHandler
}

func (s *fakeSurface) ID() schema.PanelID { return s.id }

func (s *fakeSurface) Post(_ context.Context, message any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return schema.ErrPanelDisposed
	}
	s.posted = append(s.posted, message)
	return nil
}

func (s *fakeSurface) Reveal() { s.reveals++ }

func (s *fakeSurface) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	hooks := s.onDisp
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *fakeSurface) OnDidDispose(fn func())                     { s.onDisp = append(s.onDisp, fn) }
func (s *fakeSurface) OnDidReceiveMessage(fn core.MessageHandler) { s.onMsg = fn }

func (s *fakeSurface) send(t *testing.T, raw string) {
	t.Helper()
	if s.onMsg == nil {
		t.Fatalf("no message handler registered")
	}
	s.onMsg(context.Background(), []byte(raw))
}

func (s *fakeSurface) last(t *testing.T) any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.posted) == 0 {
		t.Fatalf("nothing posted")
	}
	return s.posted[len(s.posted)-1]
}

type fakeHost struct {
	surfaces  []*fakeSurface
	opened    []string
	errors    []string
	infos     []string
	intents   []schema.Intent
	openErr   error
	createErr error
}

func (h *fakeHost) OpenWorkspace(_ context.Context, path string) error {
	if h.openErr != nil {
		return h.openErr
	}
	h.opened = append(h.opened, path)
	return nil
}
func (h *fakeHost) ShowInfo(_ context.Context, message string)  { h.infos = append(h.infos, message) }
func (h *fakeHost) ShowError(_ context.Context, message string) { h.errors = append(h.errors, message) }
func (h *fakeHost) CreateSurface(_ context.Context, _ core.SurfaceOptions) (core.Surface, error) {
	if h.createErr != nil {
		return nil, h.createErr
	}
	s := &fakeSurface{id: schema.PanelID(fmt.Sprintf("p%d", len(h.surfaces)+1))}
	h.surfaces = append(h.surfaces, s)
	return s, nil
}
func (h *fakeHost) DiagnosticSink(name string) core.DiagnosticSink { return nil }
func (h *fakeHost) ForwardIntent(_ context.Context, intent schema.Intent) error {
	h.intents = append(h.intents, intent)
	return nil
}

type memStore struct {
	source schema.SourceKey
	ok     bool
}

func (m *memStore) LastSource() (schema.SourceKey, bool) { return m.source, m.ok }
func (m *memStore) SetLastSource(source schema.SourceKey) error {
	m.source, m.ok = source, true
	return nil
}

func newPanel(t *testing.T, base string, opts ...Option) (*Panel, *fakeHost) {
	t.Helper()
	loader, err := taskloader.New(taskloader.Config{BaseDir: base})
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	host := &fakeHost{}
	return New(Config{Owner: "Browse Tasks", ViewType: "rooboostTaskBrowser", Title: "RooBoost Task Browser"}, host, loader, opts...), host
}

func mkTask(t *testing.T, base string, source schema.SourceKey, name string, mtime time.Time) string {
	t.Helper()
	dir := filepath.Join(base, string(source), "tasks", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestShowCreatesOnceThenReveals(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	if panel.State() != Unopened {
		t.Fatalf("expected unopened, got %v", panel.State())
	}
	if err := panel.Show(context.Background()); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := panel.Show(context.Background()); err != nil {
		t.Fatalf("show again: %v", err)
	}
	if len(host.surfaces) != 1 {
		t.Fatalf("expected one surface, got %d", len(host.surfaces))
	}
	if host.surfaces[0].reveals != 2 {
		t.Fatalf("expected two reveals, got %d", host.surfaces[0].reveals)
	}
	if panel.State() != Open {
		t.Fatalf("expected open, got %v", panel.State())
	}
}

func TestUserDisposeAllowsRecreate(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	_ = panel.Show(context.Background())
	host.surfaces[0].Dispose()
	if panel.State() != Disposed {
		t.Fatalf("expected disposed, got %v", panel.State())
	}
	if _, ok := panel.SurfaceID(); ok {
		t.Fatalf("expected no live surface")
	}
	_ = panel.Show(context.Background())
	if len(host.surfaces) != 2 {
		t.Fatalf("expected a new surface, got %d", len(host.surfaces))
	}
	if panel.State() != Open {
		t.Fatalf("expected open, got %v", panel.State())
	}
}

func TestDisposeWithoutSurfaceIsNoop(t *testing.T) {
	panel, _ := newPanel(t, t.TempDir())
	panel.Dispose()
	if panel.State() != Unopened {
		t.Fatalf("expected unopened, got %v", panel.State())
	}
}

func TestShowPropagatesCreateFailure(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	host.createErr = errors.New("no window")
	if err := panel.Show(context.Background()); err == nil {
		t.Fatalf("expected create error")
	}
	if panel.State() != Unopened {
		t.Fatalf("expected unopened, got %v", panel.State())
	}
}

func TestLoadTasksPostsShowTasks(t *testing.T) {
	base := t.TempDir()
	now := time.Now()
	mkTask(t, base, schema.DefaultSource, "old", now.Add(-time.Hour))
	mkTask(t, base, schema.DefaultSource, "new", now)
	panel, host := newPanel(t, base)
	_ = panel.Show(context.Background())
	surface := host.surfaces[0]

	surface.send(t, `{"command":"loadTasks"}`)
	msg, ok := surface.last(t).(schema.ShowTasks)
	if !ok {
		t.Fatalf("expected ShowTasks, got %#v", surface.last(t))
	}
	if len(msg.Tasks) != 2 || msg.Tasks[0].ID != "new" {
		t.Fatalf("unexpected tasks: %+v", msg.Tasks)
	}
	dir := filepath.Join(base, string(schema.DefaultSource), "tasks")
	if msg.Debug != fmt.Sprintf("Successfully loaded 2 tasks from %s", dir) {
		t.Fatalf("unexpected debug: %q", msg.Debug)
	}
}

func TestLoadTasksMissingDirectoryPostsShowError(t *testing.T) {
	base := t.TempDir()
	panel, host := newPanel(t, base)
	_ = panel.Show(context.Background())
	surface := host.surfaces[0]

	surface.send(t, `{"command":"loadTasks"}`)
	msg, ok := surface.last(t).(schema.ShowError)
	if !ok {
		t.Fatalf("expected ShowError, got %#v", surface.last(t))
	}
	dir := filepath.Join(base, string(schema.DefaultSource), "tasks")
	if msg.Message != "Could not load tasks: Directory does not exist: "+dir {
		t.Fatalf("unexpected message: %q", msg.Message)
	}
	if msg.Debug != "Failed to load tasks from "+dir {
		t.Fatalf("unexpected debug: %q", msg.Debug)
	}
}

func TestRepeatedLoadsAreIndependentRescans(t *testing.T) {
	base := t.TempDir()
	mkTask(t, base, schema.DefaultSource, "a", time.Now())
	panel, host := newPanel(t, base)
	_ = panel.Show(context.Background())
	surface := host.surfaces[0]

	surface.send(t, `{"command":"loadTasks"}`)
	mkTask(t, base, schema.DefaultSource, "b", time.Now())
	surface.send(t, `{"command":"loadTasks"}`)
	if len(surface.posted) != 2 {
		t.Fatalf("expected two replies, got %d", len(surface.posted))
	}
	first := surface.posted[0].(schema.ShowTasks)
	second := surface.posted[1].(schema.ShowTasks)
	if len(first.Tasks) != 1 || len(second.Tasks) != 2 {
		t.Fatalf("expected rescans to observe the new task: %d then %d", len(first.Tasks), len(second.Tasks))
	}
}

func TestSelectSourceSwitchesAndPersists(t *testing.T) {
	base := t.TempDir()
	mkTask(t, base, "saoudrizwan.claude-dev", "c1", time.Now())
	store := &memStore{}
	panel, host := newPanel(t, base, WithSourceStore(store))
	_ = panel.Show(context.Background())
	surface := host.surfaces[0]

	surface.send(t, `{"command":"selectSource","source":"saoudrizwan.claude-dev"}`)
	msg, ok := surface.last(t).(schema.ShowTasks)
	if !ok || len(msg.Tasks) != 1 || msg.Tasks[0].ID != "c1" {
		t.Fatalf("unexpected reply: %#v", surface.last(t))
	}
	if panel.Source() != "saoudrizwan.claude-dev" {
		t.Fatalf("expected source switch, got %q", panel.Source())
	}
	if store.source != "saoudrizwan.claude-dev" {
		t.Fatalf("expected persisted source, got %q", store.source)
	}

	again, _ := newPanel(t, base, WithSourceStore(store))
	if again.Source() != "saoudrizwan.claude-dev" {
		t.Fatalf("expected restored source, got %q", again.Source())
	}
}

func TestSelectSourceRejectsTraversal(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	_ = panel.Show(context.Background())
	err := panel.HandleMessage(context.Background(), []byte(`{"command":"selectSource","source":"../../etc"}`))
	if !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if panel.Source() != schema.DefaultSource {
		t.Fatalf("source should not change, got %q", panel.Source())
	}
	if len(host.errors) != 1 {
		t.Fatalf("expected a user-visible error, got %v", host.errors)
	}
}

func TestViewTaskOpensWorkspace(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	_ = panel.Show(context.Background())
	host.surfaces[0].send(t, `"{\"command\":\"viewTask\",\"taskPath\":\"/tmp/t/1\"}"`)
	if len(host.opened) != 1 || host.opened[0] != "/tmp/t/1" {
		t.Fatalf("expected workspace open, got %v", host.opened)
	}
}

func TestViewTaskNonStringPathFailsFast(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	_ = panel.Show(context.Background())
	err := panel.HandleMessage(context.Background(), []byte(`{"command":"viewTask","taskPath":42}`))
	if !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if len(host.opened) != 0 {
		t.Fatalf("expected no host action, got %v", host.opened)
	}
	if len(host.errors) != 1 || !strings.Contains(host.errors[0], "invalid request") {
		t.Fatalf("expected user-visible error, got %v", host.errors)
	}
}

func TestMoveAndDeleteAreForwarded(t *testing.T) {
	panel, host := newPanel(t, t.TempDir())
	_ = panel.Show(context.Background())
	surface := host.surfaces[0]
	surface.send(t, `{"command":"moveTasks","taskPaths":["/a","/b"],"targetSource":"saoudrizwan.claude-dev"}`)
	surface.send(t, `{"command":"deleteTasks","taskPaths":["/a"]}`)
	if len(host.intents) != 2 {
		t.Fatalf("expected two intents, got %d", len(host.intents))
	}
	move := host.intents[0]
	if move.Kind != schema.IntentMove || move.TargetSource != "saoudrizwan.claude-dev" || len(move.TaskPaths) != 2 || move.Panel != surface.id {
		t.Fatalf("unexpected move intent: %+v", move)
	}
	if host.intents[1].Kind != schema.IntentDelete {
		t.Fatalf("unexpected delete intent: %+v", host.intents[1])
	}
	if len(surface.posted) != 0 {
		t.Fatalf("intents must not post to the surface")
	}
}

func TestPostAfterDisposeReportsDisposed(t *testing.T) {
	panel, _ := newPanel(t, t.TempDir())
	_ = panel.Show(context.Background())
	panel.Dispose()
	if err := panel.Refresh(context.Background()); !errors.Is(err, schema.ErrPanelDisposed) {
		t.Fatalf("expected disposed error, got %v", err)
	}
}

func TestShowTasksWireShape(t *testing.T) {
	base := t.TempDir()
	mkTask(t, base, schema.DefaultSource, "0123456789", time.Now())
	panel, host := newPanel(t, base)
	_ = panel.Show(context.Background())
	host.surfaces[0].send(t, `{"command":"loadTasks"}`)
	data, err := json.Marshal(host.surfaces[0].last(t))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"command":"showTasks"`, `"shortId":"01234567"`, `"projectName":"Unknown project"`, `"summaryMessage":"No message available"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in %s", key, data)
		}
	}
}
