package integration_test

import (
	"context"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/httpapi"
	"pkt.systems/rooboost/internal/command"
	"pkt.systems/rooboost/internal/host"
	"pkt.systems/rooboost/internal/taskloader"
	"pkt.systems/rooboost/plugins/browsetasks"
	"pkt.systems/rooboost/schema"
)

const otherSource schema.SourceKey = "saoudrizwan.claude-dev"

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *recordingOpener) Open(_ context.Context, path string) error {
	o.mu.Lock()
	o.opened = append(o.opened, path)
	o.mu.Unlock()
	return nil
}

func (o *recordingOpener) paths() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type testServer struct {
	srv    *httptest.Server
	host   *host.Host
	hub    *httpapi.Hub
	opener *recordingOpener
	panel  schema.PanelID
	tasks  map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	base := t.TempDir()
	tasks := map[string]string{
		"fix the build": writeTask(t, base, schema.DefaultSource, "task-build", "fix the build"),
		"write docs":    writeTask(t, base, otherSource, "task-docs", "write docs"),
	}
	loader, err := taskloader.New(taskloader.Config{BaseDir: base})
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	hub := httpapi.NewHub(0)
	opener := &recordingOpener{}
	h := host.New(host.Config{Opener: opener}, hub)
	registry := core.NewRegistry(nil, h.DiagnosticSink("RooBoost"))
	registry.Register(browsetasks.New(loader, ""))
	if err := registry.ActivateAll(context.Background(), &core.Runtime{Host: h}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	surfaces := h.Surfaces()
	if len(surfaces) != 1 {
		t.Fatalf("expected the task browser surface, got %d", len(surfaces))
	}
	server := httpapi.NewServer(httpapi.Config{
		Sources: []schema.SourceKey{schema.DefaultSource, otherSource},
	}, httpapi.Deps{
		Host:     h,
		Commands: registry.Commands(),
		Palette:  command.NewHandler(registry.Commands(), command.HandlerConfig{}),
		Plugins:  registry,
		Hub:      hub,
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, host: h, hub: hub, opener: opener, panel: surfaces[0].ID, tasks: tasks}
}

func writeTask(t *testing.T, base string, source schema.SourceKey, name, summary string) string {
	t.Helper()
	dir := filepath.Join(base, string(source), "tasks", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := `[{"text":"` + summary + `"}]`
	if err := os.WriteFile(filepath.Join(dir, "ui_messages.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write messages: %v", err)
	}
	return dir
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("chrome not available")
}

func containsAll(value string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(value, term) {
			return false
		}
	}
	return true
}
