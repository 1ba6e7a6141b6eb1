package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/rooboost/internal/appconfig"
	"pkt.systems/rooboost/schema"
)

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "browse", "tasks", "plugins", "config", "doctor", "version"} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}

type fixture struct {
	dir     string
	base    string
	config  string
	taskDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "globalStorage")
	taskDir := filepath.Join(base, string(schema.DefaultSource), "tasks", "task-1")
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(taskDir, "ui_messages.json"), []byte(`[{"text":"fix the build"}]`), 0o600); err != nil {
		t.Fatalf("write task: %v", err)
	}
	config := filepath.Join(dir, "config.yaml")
	body := "config_version: 1\n" +
		"state_dir: " + filepath.Join(dir, "state") + "\n" +
		"sources:\n  base_dir: " + base + "\n"
	if err := os.WriteFile(config, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return fixture{dir: dir, base: base, config: config, taskDir: taskDir}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTasksJSON(t *testing.T) {
	fx := newFixture(t)
	out, err := run(t, "tasks", "--config", fx.config, "--json")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	var tasks []map[string]any
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0]["summaryMessage"] != "fix the build" || tasks[0]["id"] != "task-1" || tasks[0]["shortId"] != "task-1" {
		t.Fatalf("unexpected task %v", tasks[0])
	}
}

func TestTasksTable(t *testing.T) {
	fx := newFixture(t)
	out, err := run(t, "tasks", "--config", fx.config, "--dir", filepath.Dir(fx.taskDir))
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	for _, want := range []string{"SUMMARY", "fix the build", "task-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTasksMissingSource(t *testing.T) {
	fx := newFixture(t)
	_, err := run(t, "tasks", "--config", fx.config, "--source", "saoudrizwan.claude-dev")
	if !errors.Is(err, schema.ErrDirectoryMissing) {
		t.Fatalf("expected ErrDirectoryMissing, got %v", err)
	}
}

func TestPluginsValidate(t *testing.T) {
	fx := newFixture(t)
	good := filepath.Join(fx.dir, "good.yaml")
	bad := filepath.Join(fx.dir, "bad.json")
	if err := os.WriteFile(good, []byte("name: Greeter\nversion: 1.0.0\ncommands: []\nactivate: []\ndeactivate: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(bad, []byte(`{"name": 1}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := run(t, "plugins", "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "ok (Greeter 1.0.0, 0 commands)") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := run(t, "plugins", "validate", good, bad); !errors.Is(err, schema.ErrPluginShapeInvalid) {
		t.Fatalf("expected ErrPluginShapeInvalid, got %v", err)
	}
}

func TestPluginsList(t *testing.T) {
	fx := newFixture(t)
	missing := filepath.Join(fx.dir, "missing.yaml")
	body, err := os.ReadFile(fx.config)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	body = append(body, []byte("plugins:\n  external: ["+missing+"]\n  disabled: [Hello World]\n")...)
	if err := os.WriteFile(fx.config, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := run(t, "plugins", "list", "--config", fx.config)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"Browse Tasks", "builtin", "disabled", "invalid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if _, err := run(t, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config written: %v", err)
	}
	if _, err := run(t, "config", "init", "--config", path); err == nil {
		t.Fatalf("expected existing config to be kept without --force")
	}
	if _, err := run(t, "config", "init", "--config", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestDoctorAcceptsFixture(t *testing.T) {
	fx := newFixture(t)
	if _, err := run(t, "doctor", "--config", fx.config); err != nil {
		t.Fatalf("doctor: %v", err)
	}
}

func TestServerConfigFrom(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.Sources.Known = []string{"saoudrizwan.claude-dev", string(schema.DefaultSource)}
	cfg.Plugins.External = []string{"/etc/rooboost/a.yaml"}
	cfg.Logging.DisableAuditTrails = true

	got, err := serverConfigFrom(cfg, []string{"b.yaml"})
	if err != nil {
		t.Fatalf("serverConfigFrom: %v", err)
	}
	if len(got.Sources) != 2 || got.Sources[0] != schema.DefaultSource {
		t.Fatalf("expected default source first, got %v", got.Sources)
	}
	if len(got.HTTP.Sources) != 2 || got.HTTP.Addr != cfg.HTTP.Addr {
		t.Fatalf("unexpected http config %+v", got.HTTP)
	}
	if len(got.Manifests) != 2 || got.Manifests[0] != "/etc/rooboost/a.yaml" || !filepath.IsAbs(got.Manifests[1]) {
		t.Fatalf("unexpected manifests %v", got.Manifests)
	}
	if !got.DisableAuditLogging || got.Theme != "outrun" {
		t.Fatalf("unexpected config %+v", got)
	}
}
