// Package tui renders a task browser surface in the terminal with bubbletea.
// It is driven by eventbus events and talks back through the host.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/rooboost/internal/eventbus"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/internal/protocol"
	"pkt.systems/rooboost/schema"
)

const maxNotes = 5

// Host is the part of the host the terminal surface drives.
type Host interface {
	Deliver(ctx context.Context, id schema.PanelID, raw []byte) error
	Dispose(id schema.PanelID) error
}

// Config describes the surface being rendered.
type Config struct {
	Panel   schema.PanelID
	Title   string
	Sources []schema.SourceKey
	Source  schema.SourceKey
	Theme   string
}

type eventMsg struct {
	event  eventbus.Event
	closed bool
}

type deliveredMsg struct {
	command schema.Command
	err     error
}

// Model is the bubbletea model of one task browser surface.
type Model struct {
	ctx   context.Context
	cfg   Config
	host  Host
	theme theme

	panelEvents   <-chan eventbus.Event
	notifications <-chan eventbus.Event
	cancels       []func()

	tasks    []schema.TaskRecord
	projects []string
	project  string
	cursor   int
	selected map[string]bool
	source   schema.SourceKey
	target   schema.SourceKey

	errText       string
	debug         string
	notes         []string
	confirmDelete bool
	closed        bool
	width         int
}

// New subscribes to the panel's events and returns the model.
func New(ctx context.Context, cfg Config, bus *eventbus.Bus, host Host) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Source == "" {
		cfg.Source = schema.DefaultSource
	}
	panelEvents, cancelPanel := bus.Subscribe(cfg.Panel)
	notifications, cancelNotes := bus.Subscribe(eventbus.Global)
	m := Model{
		ctx:           logx.ContextWithPanel(ctx, cfg.Panel),
		cfg:           cfg,
		host:          host,
		theme:         themeFor(cfg.Theme),
		panelEvents:   panelEvents,
		notifications: notifications,
		cancels:       []func(){cancelPanel, cancelNotes},
		selected:      make(map[string]bool),
		source:        cfg.Source,
	}
	m.target = m.nextSource(m.source, m.source)
	return m
}

// Close releases the event subscriptions.
func (m Model) Close() {
	for _, cancel := range m.cancels {
		cancel()
	}
}

// Run drives the model until the user quits, the panel is disposed or ctx ends.
func Run(ctx context.Context, cfg Config, bus *eventbus.Bus, host Host, opts ...tea.ProgramOption) error {
	m := New(ctx, cfg, bus, host)
	defer m.Close()
	log := logx.Ctx(ctx).With("panel", cfg.Panel)
	log.Info("tui open", "source", m.source)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	log.Info("tui closed", "err", err)
	return err
}

// Init asks for the first listing and starts listening.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.wait(), m.request(protocol.LoadTasks{}))
}

func (m Model) wait() tea.Cmd {
	panelEvents, notifications := m.panelEvents, m.notifications
	return func() tea.Msg {
		select {
		case ev, ok := <-panelEvents:
			return eventMsg{event: ev, closed: !ok}
		case ev, ok := <-notifications:
			return eventMsg{event: ev, closed: !ok}
		}
	}
}

func (m Model) request(req protocol.Request) tea.Cmd {
	ctx, host, id := m.ctx, m.host, m.cfg.Panel
	return func() tea.Msg {
		raw, err := protocol.EncodeRequest(req)
		if err == nil {
			err = host.Deliver(ctx, id, raw)
		}
		return deliveredMsg{command: req.Command(), err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case eventMsg:
		if msg.closed {
			m.closed = true
			return m, tea.Quit
		}
		return m.handleEvent(msg.event)
	case deliveredMsg:
		if msg.err != nil {
			m.errText = fmt.Sprintf("%s failed: %v", msg.command, msg.err)
			if errors.Is(msg.err, schema.ErrPanelDisposed) {
				m.closed = true
				return m, tea.Quit
			}
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleEvent(event eventbus.Event) (tea.Model, tea.Cmd) {
	switch event.Type {
	case eventbus.EventNotification:
		note := event.Notification
		text := note.Message
		if text == "" {
			text = note.Path
		}
		if text == "" {
			text = note.Channel
		}
		m.notes = append(m.notes, fmt.Sprintf("[%s] %s", note.Level, text))
		if len(m.notes) > maxNotes {
			m.notes = m.notes[len(m.notes)-maxNotes:]
		}
	case eventbus.EventPanel:
		switch event.Panel.Type {
		case schema.PanelDispose:
			m.closed = true
			return m, tea.Quit
		case schema.PanelMessage:
			m.applyReply(event.Panel.Payload)
		}
	}
	return m, m.wait()
}

func (m *Model) applyReply(payload []byte) {
	reply, err := protocol.DecodeReply(payload)
	if err != nil {
		m.errText = err.Error()
		return
	}
	switch r := reply.(type) {
	case schema.ShowTasks:
		m.errText = ""
		m.debug = r.Debug
		m.tasks = r.Tasks
		m.projects = projectsOf(r.Tasks)
		if m.project != "" && !contains(m.projects, m.project) {
			m.project = ""
		}
		live := make(map[string]bool, len(r.Tasks))
		for _, task := range r.Tasks {
			live[task.Path] = true
		}
		for path := range m.selected {
			if !live[path] {
				delete(m.selected, path)
			}
		}
		m.clampCursor()
	case schema.ShowError:
		m.errText = r.Message
		m.debug = r.Debug
		m.tasks = nil
		m.projects = nil
		m.cursor = 0
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.confirmDelete {
		m.confirmDelete = false
		if key == "y" {
			return m, m.request(protocol.DeleteTasks{TaskPaths: m.targets()})
		}
		return m, nil
	}
	visible := m.visible()
	switch key {
	case "q", "ctrl+c", "esc":
		if err := m.host.Dispose(m.cfg.Panel); err != nil {
			logx.Ctx(m.ctx).Debug("tui dispose skipped", "err", err)
		}
		m.closed = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
	case " ", "x":
		if len(visible) > 0 {
			path := visible[m.cursor].Path
			if m.selected[path] {
				delete(m.selected, path)
			} else {
				m.selected[path] = true
			}
		}
	case "a":
		all := len(visible) > 0
		for _, task := range visible {
			if !m.selected[task.Path] {
				all = false
				break
			}
		}
		for _, task := range visible {
			if all {
				delete(m.selected, task.Path)
			} else {
				m.selected[task.Path] = true
			}
		}
	case "enter", "v":
		if len(visible) > 0 {
			return m, m.request(protocol.ViewTask{TaskPath: visible[m.cursor].Path})
		}
	case "r":
		return m, m.request(protocol.LoadTasks{})
	case "s", "tab":
		if len(m.cfg.Sources) > 0 {
			m.source = m.nextSource(m.source, "")
			m.target = m.nextSource(m.source, m.source)
			return m, m.request(protocol.SelectSource{Source: m.source})
		}
	case "t":
		m.target = m.nextSource(m.target, m.source)
	case "p":
		m.project = nextProject(m.projects, m.project)
		m.cursor = 0
	case "m":
		paths := m.targets()
		if len(paths) == 0 {
			m.errText = "Select at least one task"
			return m, nil
		}
		if m.target == "" {
			m.errText = "No target source"
			return m, nil
		}
		return m, m.request(protocol.MoveTasks{TaskPaths: paths, TargetSource: m.target})
	case "d":
		if len(m.targets()) == 0 {
			m.errText = "Select at least one task"
			return m, nil
		}
		m.confirmDelete = true
	}
	return m, nil
}

// targets are the selected tasks, or the task under the cursor when none is selected.
func (m Model) targets() []string {
	var paths []string
	for _, task := range m.tasks {
		if m.selected[task.Path] {
			paths = append(paths, task.Path)
		}
	}
	if len(paths) == 0 {
		if visible := m.visible(); len(visible) > 0 {
			paths = append(paths, visible[m.cursor].Path)
		}
	}
	return paths
}

func (m Model) visible() []schema.TaskRecord {
	if m.project == "" {
		return m.tasks
	}
	out := make([]schema.TaskRecord, 0, len(m.tasks))
	for _, task := range m.tasks {
		if task.ProjectName == m.project {
			out = append(out, task)
		}
	}
	return out
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// nextSource returns the source after current, skipping skip.
func (m Model) nextSource(current, skip schema.SourceKey) schema.SourceKey {
	sources := m.cfg.Sources
	if len(sources) == 0 {
		return ""
	}
	start := -1
	for i, source := range sources {
		if source == current {
			start = i
			break
		}
	}
	for step := 1; step <= len(sources); step++ {
		candidate := sources[(start+step+len(sources))%len(sources)]
		if candidate != skip {
			return candidate
		}
	}
	return ""
}

func nextProject(projects []string, current string) string {
	if len(projects) == 0 {
		return ""
	}
	if current == "" {
		return projects[0]
	}
	for i, project := range projects {
		if project == current {
			if i+1 < len(projects) {
				return projects[i+1]
			}
			return ""
		}
	}
	return ""
}

func projectsOf(tasks []schema.TaskRecord) []string {
	seen := make(map[string]bool)
	var projects []string
	for _, task := range tasks {
		if !seen[task.ProjectName] {
			seen[task.ProjectName] = true
			projects = append(projects, task.ProjectName)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return strings.ToLower(projects[i]) < strings.ToLower(projects[j])
	})
	return projects
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
