package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/rooboost/internal/diag"
	"pkt.systems/rooboost/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Sources       SourcesConfig `mapstructure:"sources" yaml:"sources"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	Host          HostConfig    `mapstructure:"host" yaml:"host"`
	Plugins       PluginsConfig `mapstructure:"plugins" yaml:"plugins"`
	TUI           TUIConfig     `mapstructure:"tui" yaml:"tui"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SourcesConfig selects where task directories are read from.
type SourcesConfig struct {
	Default string   `mapstructure:"default" yaml:"default"`
	Known   []string `mapstructure:"known" yaml:"known"`
	// BaseDir overrides the editor global storage directory. Empty means the
	// platform default.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// HTTPConfig configures the HTTP host.
type HTTPConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	BasePath    string `mapstructure:"base_path" yaml:"base_path"`
	HistorySize int    `mapstructure:"history_size" yaml:"history_size"`
}

// HostConfig configures host services shared by both surfaces.
type HostConfig struct {
	OpenCommand         string `mapstructure:"open_command" yaml:"open_command"`
	DiagnosticsMaxLines int    `mapstructure:"diagnostics_max_lines" yaml:"diagnostics_max_lines"`
}

// PluginsConfig lists external manifests and disabled plugins.
type PluginsConfig struct {
	External []string `mapstructure:"external" yaml:"external"`
	Disabled []string `mapstructure:"disabled" yaml:"disabled"`
}

// TUIConfig configures the terminal surface.
type TUIConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".rooboost", "state"),
		Sources: SourcesConfig{
			Default: string(schema.DefaultSource),
			Known:   []string{string(schema.DefaultSource), "saoudrizwan.claude-dev"},
			BaseDir: "",
		},
		HTTP: HTTPConfig{
			Addr:        "127.0.0.1:27490",
			BaseURL:     "",
			BasePath:    "",
			HistorySize: 1000,
		},
		Host: HostConfig{
			OpenCommand:         "",
			DiagnosticsMaxLines: diag.DefaultMaxLines,
		},
		Plugins: PluginsConfig{
			External: []string{},
			Disabled: []string{},
		},
		TUI: TUIConfig{
			Theme: "outrun",
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rooboost", "config.yaml"), nil
}

// SourceKeys returns the known sources with the default first and duplicates removed.
func (c Config) SourceKeys() []schema.SourceKey {
	seen := make(map[string]bool)
	var out []schema.SourceKey
	for _, source := range append([]string{c.Sources.Default}, c.Sources.Known...) {
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		out = append(out, schema.SourceKey(source))
	}
	return out
}
