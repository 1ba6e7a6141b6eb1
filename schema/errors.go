package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates a malformed protocol request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidSource indicates a source key that cannot name a directory.
	ErrInvalidSource = errors.New("invalid source")
	// ErrDirectoryMissing indicates the tasks directory does not exist.
	ErrDirectoryMissing = errors.New("directory does not exist")
	// ErrDirectoryUnreadable indicates the tasks directory cannot be read.
	ErrDirectoryUnreadable = errors.New("no read permissions for directory")
	// ErrMetadataParse indicates a task metadata file could not be parsed.
	ErrMetadataParse = errors.New("metadata parse failure")
	// ErrPluginActivation indicates a plugin failed (or panicked) while activating.
	ErrPluginActivation = errors.New("plugin activation failed")
	// ErrPluginShapeInvalid indicates a plugin manifest is structurally invalid.
	ErrPluginShapeInvalid = errors.New("invalid plugin shape")
	// ErrDuplicateOperation indicates an operation id is already bound by another plugin.
	ErrDuplicateOperation = errors.New("operation already registered")
	// ErrUnknownOperation indicates no operation is bound under the id.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrPanelDisposed indicates the surface was already disposed.
	ErrPanelDisposed = errors.New("panel disposed")
)

// LoadError reports a directory-level scan failure.
type LoadError struct {
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	switch {
	case errors.Is(e.Err, ErrDirectoryMissing):
		return fmt.Sprintf("Directory does not exist: %s", e.Dir)
	case errors.Is(e.Err, ErrDirectoryUnreadable):
		return fmt.Sprintf("No read permissions for directory: %s", e.Dir)
	default:
		return fmt.Sprintf("load %s: %v", e.Dir, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }
