package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/schema"
)

// PanelSnapshot captures per-panel state for persistence.
type PanelSnapshot struct {
	LastSource schema.SourceKey `json:"last_source,omitempty"`
}

// PluginSnapshot lists manifests loaded at runtime, in load order.
type PluginSnapshot struct {
	Manifests []string `json:"manifests"`
}

// Store persists host state to disk.
type Store struct {
	dir string
	log pslog.Logger
	mu  sync.Mutex
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// LoadPanel reads the snapshot of the panel owned by owner.
func (s *Store) LoadPanel(owner schema.PluginName) (PanelSnapshot, bool, error) {
	var snapshot PanelSnapshot
	ok, err := s.load(s.pathForPanel(owner), &snapshot)
	return snapshot, ok, err
}

// SavePanel writes the snapshot of the panel owned by owner.
func (s *Store) SavePanel(owner schema.PluginName, snapshot PanelSnapshot) error {
	return s.save(s.pathForPanel(owner), snapshot)
}

// LoadPlugins reads the runtime-loaded manifest list.
func (s *Store) LoadPlugins() (PluginSnapshot, bool, error) {
	var snapshot PluginSnapshot
	ok, err := s.load(s.pluginsPath(), &snapshot)
	return snapshot, ok, err
}

// AddManifest appends path to the manifest list unless already present.
func (s *Store) AddManifest(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, _, err := s.LoadPlugins()
	if err != nil {
		return err
	}
	if slices.Contains(snapshot.Manifests, path) {
		return nil
	}
	snapshot.Manifests = append(snapshot.Manifests, path)
	return s.save(s.pluginsPath(), snapshot)
}

// SourceMemory returns a view that remembers the source selected in owner's panel.
func (s *Store) SourceMemory(owner schema.PluginName) *SourceMemory {
	return &SourceMemory{store: s, owner: owner}
}

// SourceMemory adapts a Store to the panel's source memory.
type SourceMemory struct {
	store *Store
	owner schema.PluginName
}

// LastSource returns the remembered source, if any.
func (m *SourceMemory) LastSource() (schema.SourceKey, bool) {
	snapshot, ok, err := m.store.LoadPanel(m.owner)
	if err != nil || !ok || snapshot.LastSource == "" {
		return "", false
	}
	return snapshot.LastSource, true
}

// SetLastSource remembers source.
func (m *SourceMemory) SetLastSource(source schema.SourceKey) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	snapshot, _, err := m.store.LoadPanel(m.owner)
	if err != nil {
		snapshot = PanelSnapshot{}
	}
	snapshot.LastSource = source
	return m.store.SavePanel(m.owner, snapshot)
}

func (s *Store) load(path string, v any) (bool, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "file", name)
			}
			return false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "file", name, "err", err)
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "file", name, "err", err)
		}
		return false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "file", name)
	}
	return true, nil
}

func (s *Store) save(path string, v any) error {
	name := filepath.Base(path)
	fail := func(err error) error {
		if s.log != nil {
			s.log.Warn("state save failed", "file", name, "err", err)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fail(err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "file", name)
	}
	return nil
}

func (s *Store) pathForPanel(owner schema.PluginName) string {
	name := sanitize(string(owner))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, "panels", name+".json")
}

func (s *Store) pluginsPath() string {
	return filepath.Join(s.dir, "plugins.json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
