package taskloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

// LineSink receives human-readable diagnostics.
type LineSink interface {
	AppendLine(line string)
}

// Config configures a Loader.
type Config struct {
	// BaseDir overrides the platform global storage directory.
	BaseDir string
	// Home and GOOS select the platform directory when BaseDir is empty.
	Home string
	GOOS string
	Sink LineSink
}

// Loader scans task directories into TaskRecords.
type Loader struct {
	base string
	sink LineSink
}

// New constructs a Loader.
func New(cfg Config) (*Loader, error) {
	base := cfg.BaseDir
	if base == "" {
		home := cfg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return nil, err
			}
		}
		goos := cfg.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}
		base = BaseDir(goos, home)
	}
	return &Loader{base: base, sink: cfg.Sink}, nil
}

// Base returns the directory that holds all sources.
func (l *Loader) Base() string {
	return l.base
}

// Dir resolves the tasks directory for a source.
func (l *Loader) Dir(source schema.SourceKey) (string, error) {
	return TasksDir(l.base, source)
}

// Scan loads the tasks of a source, newest first.
func (l *Loader) Scan(ctx context.Context, source schema.SourceKey) ([]schema.TaskRecord, error) {
	dir, err := l.Dir(source)
	if err != nil {
		return nil, err
	}
	return l.scan(ctx, source, dir)
}

// ScanDir loads the tasks of an explicit directory, newest first.
func (l *Loader) ScanDir(ctx context.Context, dir string) ([]schema.TaskRecord, error) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return l.scan(ctx, "", dir)
}

func (l *Loader) scan(ctx context.Context, source schema.SourceKey, dir string) ([]schema.TaskRecord, error) {
	log := logx.WithSource(pslog.Ctx(ctx), source, dir)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("task scan failed", "reason", "missing")
			return nil, &schema.LoadError{Dir: dir, Err: schema.ErrDirectoryMissing}
		}
		log.Warn("task scan failed", "err", err)
		return nil, &schema.LoadError{Dir: dir, Err: fmt.Errorf("%w: %v", schema.ErrDirectoryUnreadable, err)}
	}
	if !info.IsDir() {
		log.Warn("task scan failed", "reason", "not a directory")
		return nil, &schema.LoadError{Dir: dir, Err: schema.ErrDirectoryMissing}
	}
	if err := checkReadable(dir); err != nil {
		log.Warn("task scan failed", "reason", "unreadable", "err", err)
		return nil, &schema.LoadError{Dir: dir, Err: fmt.Errorf("%w: %v", schema.ErrDirectoryUnreadable, err)}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("task scan failed", "err", err)
		return nil, &schema.LoadError{Dir: dir, Err: fmt.Errorf("%w: %v", schema.ErrDirectoryUnreadable, err)}
	}

	tasks := make([]schema.TaskRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, ok := l.readTask(log, filepath.Join(dir, entry.Name()), entry.Name())
		if ok {
			tasks = append(tasks, record)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].ModifiedAt.After(tasks[j].ModifiedAt)
	})
	log.Debug("task scan ok", "count", len(tasks))
	return tasks, nil
}

func (l *Loader) readTask(log pslog.Logger, path, name string) (schema.TaskRecord, bool) {
	log = log.With("task", name)
	summary, err := readSummary(path)
	if err != nil {
		log.Warn("task metadata parse failed", "err", err)
		l.appendLine(fmt.Sprintf("Error reading task files for %s: %v", name, err))
	}
	project, err := readProject(path)
	if err != nil {
		log.Warn("task metadata parse failed", "err", err)
		l.appendLine(fmt.Sprintf("Error reading task files for %s: %v", name, err))
	}
	info, err := os.Stat(path)
	if err != nil {
		// Removed between listing and stat.
		log.Warn("task skipped", "err", err)
		l.appendLine(fmt.Sprintf("Skipped task %s: %v", name, err))
		return schema.TaskRecord{}, false
	}
	l.appendLine(fmt.Sprintf("Project: %s, Message: %s", project, summary))
	return schema.TaskRecord{
		ID:             name,
		Path:           path,
		SummaryMessage: summary,
		ProjectName:    project,
		ModifiedAt:     info.ModTime(),
	}, true
}

func (l *Loader) appendLine(line string) {
	if l.sink != nil {
		l.sink.AppendLine(line)
	}
}
