package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.HTTP.Addr != def.HTTP.Addr || cfg.StateDir != def.StateDir {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":1"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadReadsSections(t *testing.T) {
	t.Setenv("RB_TEST_DIR", "/data")
	path := writeConfig(t, `
config_version: 1
state_dir: $RB_TEST_DIR/state
sources:
  default: saoudrizwan.claude-dev
  known: [rooveterinaryinc.roo-cline]
  base_dir: $RB_TEST_DIR/storage
http:
  addr: ":9000"
  base_path: /rb
  history_size: 50
host:
  open_command: "code {path}"
  diagnostics_max_lines: 10
plugins:
  external: [$RB_TEST_DIR/plugin.yaml]
  disabled: [Hello World]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/data/state" || cfg.Sources.BaseDir != "/data/storage" {
		t.Fatalf("expected expanded paths, got %q %q", cfg.StateDir, cfg.Sources.BaseDir)
	}
	if cfg.Sources.Default != "saoudrizwan.claude-dev" || len(cfg.Sources.Known) != 1 {
		t.Fatalf("unexpected sources %+v", cfg.Sources)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.HTTP.BasePath != "/rb" || cfg.HTTP.HistorySize != 50 {
		t.Fatalf("unexpected http %+v", cfg.HTTP)
	}
	if cfg.Host.OpenCommand != "code {path}" || cfg.Host.DiagnosticsMaxLines != 10 {
		t.Fatalf("unexpected host %+v", cfg.Host)
	}
	if len(cfg.Plugins.External) != 1 || cfg.Plugins.External[0] != "/data/plugin.yaml" {
		t.Fatalf("unexpected external plugins %v", cfg.Plugins.External)
	}
	if len(cfg.Plugins.Disabled) != 1 || cfg.Plugins.Disabled[0] != "Hello World" {
		t.Fatalf("unexpected disabled plugins %v", cfg.Plugins.Disabled)
	}
}

func TestLoadRejectsTraversalSource(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
sources:
  default: ../etc
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "sources") {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestLoadRejectsInvalidHTTPBaseURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  base_url: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
