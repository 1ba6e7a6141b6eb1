// Package diag implements named diagnostic output channels.
package diag

import (
	"sort"
	"sync"

	"pkt.systems/pslog"
)

// DefaultMaxLines caps a channel when no limit is configured.
const DefaultMaxLines = 2000

// View is a snapshot of a channel's tail.
type View struct {
	Name       string   `json:"name"`
	Lines      []string `json:"lines"`
	TotalLines int      `json:"total_lines"`
	Shown      bool     `json:"shown"`
}

// Channel is a capped scrollback of diagnostic lines, mirrored to the logger.
type Channel struct {
	name     string
	log      pslog.Logger
	onShow   func(name string)
	mu       sync.Mutex
	lines    []string
	maxLines int
	shown    bool
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// AppendLine appends a line, dropping the oldest lines past the cap.
func (c *Channel) AppendLine(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	if c.maxLines > 0 && len(c.lines) > c.maxLines {
		trim := len(c.lines) - c.maxLines
		c.lines = append([]string(nil), c.lines[trim:]...)
	}
	c.mu.Unlock()
	if c.log != nil {
		c.log.Trace("diagnostic", "line", line)
	}
}

// Show marks the channel as revealed and notifies the owning Set.
func (c *Channel) Show() {
	c.mu.Lock()
	c.shown = true
	onShow := c.onShow
	c.mu.Unlock()
	if onShow != nil {
		onShow(c.name)
	}
}

// Snapshot returns up to limit trailing lines; limit <= 0 returns everything.
func (c *Channel) Snapshot(limit int) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := len(c.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	lines := make([]string, limit)
	copy(lines, c.lines[total-limit:])
	return View{Name: c.name, Lines: lines, TotalLines: total, Shown: c.shown}
}

// Set owns the channels of one host, keyed by name.
type Set struct {
	mu       sync.Mutex
	channels map[string]*Channel
	maxLines int
	log      pslog.Logger
	onShow   func(name string)
}

// NewSet constructs a channel set. onShow may be nil.
func NewSet(maxLines int, logger pslog.Logger, onShow func(name string)) *Set {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Set{
		channels: make(map[string]*Channel),
		maxLines: maxLines,
		log:      logger,
		onShow:   onShow,
	}
}

// Channel returns the named channel, creating it on first use.
func (s *Set) Channel(name string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch := &Channel{name: name, maxLines: s.maxLines, onShow: s.onShow}
	if s.log != nil {
		ch.log = s.log.With("channel", name)
	}
	s.channels[name] = ch
	return ch
}

// Lookup returns an existing channel.
func (s *Set) Lookup(name string) (*Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[name]
	return ch, ok
}

// Names lists channel names sorted.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
