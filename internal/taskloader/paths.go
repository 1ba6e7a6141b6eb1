package taskloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"pkt.systems/rooboost/schema"
)

const tasksDirName = "tasks"

// BaseDir returns the editor global storage directory for the platform.
func BaseDir(goos, home string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Code", "User", "globalStorage")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Code", "User", "globalStorage")
	default:
		return filepath.Join(home, ".config", "Code", "User", "globalStorage")
	}
}

// TasksDir resolves the tasks directory of a source under base.
func TasksDir(base string, source schema.SourceKey) (string, error) {
	if err := ValidateSource(source); err != nil {
		return "", err
	}
	return filepath.Join(base, string(source), tasksDirName), nil
}

// ValidateSource rejects keys that cannot name a single directory below the base.
func ValidateSource(source schema.SourceKey) error {
	key := strings.TrimSpace(string(source))
	if key == "" {
		return fmt.Errorf("%w: empty source key", schema.ErrInvalidSource)
	}
	if key != string(source) {
		return fmt.Errorf("%w: %q has surrounding whitespace", schema.ErrInvalidSource, source)
	}
	if strings.ContainsAny(key, `/\`) || key == "." || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", schema.ErrInvalidSource, source)
	}
	return nil
}
