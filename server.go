package rooboost

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/httpapi"
	"pkt.systems/rooboost/internal/command"
	"pkt.systems/rooboost/internal/eventbus"
	"pkt.systems/rooboost/internal/host"
	"pkt.systems/rooboost/internal/manifest"
	"pkt.systems/rooboost/internal/persist"
	"pkt.systems/rooboost/internal/taskloader"
	"pkt.systems/rooboost/internal/taskpanel"
	"pkt.systems/rooboost/internal/tui"
	"pkt.systems/rooboost/plugins/browsetasks"
	"pkt.systems/rooboost/plugins/helloworld"
	"pkt.systems/rooboost/schema"
)

const (
	// DiagnosticChannel is the sink shared by the registry and the task loader.
	DiagnosticChannel = "RooBoost"
	// LoadPluginOperation loads a manifest plugin from the path given as first argument.
	LoadPluginOperation schema.OperationID = "rooboost.loadPlugin"

	hostOwner = "rooboost"
)

// Server composes the host, the plugin registry and the enabled surfaces.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Execute runs a bound operation.
	Execute(ctx context.Context, id schema.OperationID, args ...any) error
	// Plugins reports the registry state.
	Plugins() []core.PluginStatus
	// Browse runs the terminal task browser until it is closed.
	Browse(ctx context.Context, opts ...tea.ProgramOption) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	HTTP          httpapi.Config
	Host          host.Config
	Sources       []schema.SourceKey
	DefaultSource schema.SourceKey
	// BaseDir overrides the editor global storage directory.
	BaseDir string
	// StateDir enables the persisted source memory and manifest list. Empty
	// disables persistence.
	StateDir string
	// Manifests are loaded on Start, after the built-in plugins.
	Manifests           []string
	Disabled            []string
	Theme               string
	DisableAuditLogging bool
}

// ServerDeps captures optional collaborators.
type ServerDeps struct {
	Logger pslog.Logger
	// EventSink receives every host event in addition to the enabled surfaces.
	EventSink core.EventSink
	Opener    host.Opener
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP     bool
	enableTerminal bool
}

// WithHTTP enables the HTTP API and browser surfaces.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithTerminal enables the terminal surface used by Browse.
func WithTerminal() ServerOption {
	return func(o *serverOptions) { o.enableTerminal = true }
}

// New constructs a composable rooboost server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableTerminal {
		return nil, errors.New("no services enabled")
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = schema.DefaultSource
	}
	if err := taskloader.ValidateSource(cfg.DefaultSource); err != nil {
		return nil, err
	}
	if !slices.Contains(cfg.Sources, cfg.DefaultSource) {
		cfg.Sources = append([]schema.SourceKey{cfg.DefaultSource}, cfg.Sources...)
	}
	if len(cfg.HTTP.Sources) == 0 {
		cfg.HTTP.Sources = cfg.Sources
	}

	var hub *httpapi.Hub
	var bus *eventbus.Bus
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HTTP.HistorySize)
	}
	if options.enableTerminal {
		bus = eventbus.New(deps.Logger)
	}
	sinks := make([]core.EventSink, 0, 3)
	if deps.EventSink != nil {
		sinks = append(sinks, deps.EventSink)
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	var sink core.EventSink = eventFanout{sinks: sinks}
	if len(sinks) == 1 {
		sink = sinks[0]
	}

	hostCfg := cfg.Host
	if deps.Opener != nil {
		hostCfg.Opener = deps.Opener
	}
	if hostCfg.Logger == nil {
		hostCfg.Logger = deps.Logger
	}
	h := host.New(hostCfg, sink)
	shared := h.DiagnosticSink(DiagnosticChannel)
	registry := core.NewRegistry(nil, shared)

	loader, err := taskloader.New(taskloader.Config{BaseDir: cfg.BaseDir, Sink: shared})
	if err != nil {
		return nil, err
	}

	var store *persist.Store
	if strings.TrimSpace(cfg.StateDir) != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}

	s := &compositeServer{
		cfg:      cfg,
		options:  options,
		host:     h,
		registry: registry,
		store:    store,
		bus:      bus,
	}

	if !s.disabled(browsetasks.Name) {
		var panelOpts []taskpanel.Option
		if store != nil {
			panelOpts = append(panelOpts, taskpanel.WithSourceStore(store.SourceMemory(browsetasks.Name)))
		}
		s.browser = browsetasks.New(loader, cfg.DefaultSource, panelOpts...)
		registry.Register(s.browser)
	}
	if !s.disabled(helloworld.Name) {
		registry.Register(helloworld.New())
	}
	if err := registry.Commands().Register(hostOwner, LoadPluginOperation, "RooBoost: Load Plugin", s.loadPluginCommand); err != nil {
		return nil, err
	}

	if options.enableHTTP {
		palette := command.NewHandler(registry.Commands(), command.HandlerConfig{
			DisableAuditLogging: cfg.DisableAuditLogging,
		})
		s.httpSrv = httpapi.NewServer(cfg.HTTP, httpapi.Deps{
			Host:     h,
			Commands: registry.Commands(),
			Palette:  palette,
			Plugins:  registry,
			Hub:      hub,
		})
	}
	return s, nil
}

type compositeServer struct {
	cfg      ServerConfig
	options  serverOptions
	host     *host.Host
	registry *core.Registry
	store    *persist.Store
	bus      *eventbus.Bus
	browser  *browsetasks.Plugin
	httpSrv  *httpapi.Server
	logger   pslog.Logger

	loadMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"terminal", s.options.enableTerminal,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"default_source", s.cfg.DefaultSource,
	)
	if err := s.registry.ActivateAll(s.ctx, s.runtime()); err != nil {
		log.Warn("plugin activation incomplete", "err", err)
	}
	for _, path := range s.manifestPaths() {
		if err := s.loadPlugin(s.ctx, path, false); err != nil {
			s.host.ShowError(s.ctx, fmt.Sprintf("Failed to load plugin %s: %v", path, err))
		}
	}

	if s.options.enableHTTP && s.httpSrv != nil {
		s.httpSrv.SetBaseContext(s.ctx)
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	serverCtx := s.ctx
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if err := s.registry.DeactivateAll(serverCtx); err != nil {
		log.Warn("plugin deactivation incomplete", "err", err)
	}
	s.host.Close()
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-serverCtx.Done():
		log.Info("server stopped")
		return nil
	}
}

func (s *compositeServer) Execute(ctx context.Context, id schema.OperationID, args ...any) error {
	return s.registry.Commands().Execute(ctx, id, args...)
}

func (s *compositeServer) Plugins() []core.PluginStatus {
	return s.registry.Status()
}

func (s *compositeServer) Browse(ctx context.Context, opts ...tea.ProgramOption) error {
	if s.bus == nil {
		return errors.New("terminal surface not enabled")
	}
	cfg, err := s.browseTarget(ctx)
	if err != nil {
		return err
	}
	return tui.Run(ctx, cfg, s.bus, s.host, opts...)
}

// browseTarget finds the live task browser surface, showing it first when
// it was closed.
func (s *compositeServer) browseTarget(ctx context.Context) (tui.Config, error) {
	if s.browser == nil {
		return tui.Config{}, fmt.Errorf("%s plugin is disabled", browsetasks.Name)
	}
	info, ok := s.browserSurface()
	if !ok {
		if err := s.Execute(ctx, browsetasks.Operation); err != nil {
			return tui.Config{}, err
		}
		if info, ok = s.browserSurface(); !ok {
			return tui.Config{}, errors.New("task browser surface did not open")
		}
	}
	source := s.cfg.DefaultSource
	if panel := s.browser.Panel(); panel != nil {
		source = panel.Source()
	}
	return tui.Config{
		Panel:   info.ID,
		Title:   info.Title,
		Sources: s.cfg.Sources,
		Source:  source,
		Theme:   s.cfg.Theme,
	}, nil
}

func (s *compositeServer) browserSurface() (host.SurfaceInfo, bool) {
	for _, info := range s.host.Surfaces() {
		if info.ViewType == browsetasks.ViewType {
			return info, true
		}
	}
	return host.SurfaceInfo{}, false
}

func (s *compositeServer) runtime() *core.Runtime {
	return &core.Runtime{Host: s.host, Commands: s.registry.Commands()}
}

func (s *compositeServer) disabled(name schema.PluginName) bool {
	for _, d := range s.cfg.Disabled {
		if strings.EqualFold(strings.TrimSpace(d), string(name)) {
			return true
		}
	}
	return false
}

// manifestPaths returns configured manifests followed by previously loaded ones.
func (s *compositeServer) manifestPaths() []string {
	paths := slices.Clone(s.cfg.Manifests)
	if s.store != nil {
		snapshot, _, err := s.store.LoadPlugins()
		if err != nil {
			s.logger.Warn("plugin list restore failed", "err", err)
		}
		paths = append(paths, snapshot.Manifests...)
	}
	out := paths[:0]
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

func (s *compositeServer) loadPluginCommand(ctx context.Context, args ...any) error {
	var path string
	if len(args) > 0 {
		path, _ = args[0].(string)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		err := fmt.Errorf("%w: %s requires a manifest path", schema.ErrInvalidRequest, LoadPluginOperation)
		s.host.ShowError(ctx, err.Error())
		return err
	}
	if err := s.loadPlugin(ctx, path, true); err != nil {
		s.host.ShowError(ctx, fmt.Sprintf("Failed to load plugin %s: %v", path, err))
		return err
	}
	return nil
}

func (s *compositeServer) loadPlugin(ctx context.Context, path string, remember bool) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	log := pslog.Ctx(ctx).With("manifest", path)
	m, err := manifest.Load(path)
	if err != nil {
		log.Warn("plugin manifest rejected", "err", err)
		return err
	}
	if s.disabled(m.Name) {
		log.Info("plugin manifest skipped", "plugin", m.Name, "reason", "disabled")
		return nil
	}
	if err := s.registry.Activate(ctx, s.runtime(), manifest.NewPlugin(m, path)); err != nil {
		log.Warn("plugin manifest activation failed", "plugin", m.Name, "err", err)
		return err
	}
	log.Info("plugin manifest loaded", "plugin", m.Name, "version", m.Version)
	if remember && s.store != nil {
		if err := s.store.AddManifest(path); err != nil {
			log.Warn("plugin list persist failed", "err", err)
		}
	}
	return nil
}
