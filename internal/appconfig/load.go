package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/rooboost/internal/taskloader"
	"pkt.systems/rooboost/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("sources.default", cfg.Sources.Default)
	v.SetDefault("sources.known", cfg.Sources.Known)
	v.SetDefault("sources.base_dir", cfg.Sources.BaseDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.history_size", cfg.HTTP.HistorySize)
	v.SetDefault("host.open_command", cfg.Host.OpenCommand)
	v.SetDefault("host.diagnostics_max_lines", cfg.Host.DiagnosticsMaxLines)
	v.SetDefault("plugins.external", cfg.Plugins.External)
	v.SetDefault("plugins.disabled", cfg.Plugins.Disabled)
	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateSources(cfg.Sources); err != nil {
		return Config{}, err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateSources(cfg SourcesConfig) error {
	for _, source := range append([]string{cfg.Default}, cfg.Known...) {
		if err := taskloader.ValidateSource(schema.SourceKey(source)); err != nil {
			return fmt.Errorf("sources: %w", err)
		}
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	if cfg.HistorySize < 0 {
		return fmt.Errorf("http.history_size must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Sources.BaseDir = expandEnv(cfg.Sources.BaseDir)
	for i, path := range cfg.Plugins.External {
		cfg.Plugins.External[i] = expandEnv(path)
	}
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	case "HOME":
		if home, err := os.UserHomeDir(); err == nil {
			return home, true
		}
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
