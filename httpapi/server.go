package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/rooboost/core"
	"pkt.systems/rooboost/internal/command"
	"pkt.systems/rooboost/internal/diag"
	"pkt.systems/rooboost/internal/host"
	"pkt.systems/rooboost/internal/logx"
	"pkt.systems/rooboost/schema"
)

const maxMessageSize = 1 << 20

// SurfaceHost is the part of the host the HTTP surface transport drives.
type SurfaceHost interface {
	Surfaces() []host.SurfaceInfo
	Deliver(ctx context.Context, id schema.PanelID, raw []byte) error
	Dispose(id schema.PanelID) error
	Diagnostics() *diag.Set
}

// Commands exposes the command table.
type Commands interface {
	List() []core.CommandInfo
	Execute(ctx context.Context, id schema.OperationID, args ...any) error
}

// Palette runs palette lines.
type Palette interface {
	Handle(ctx context.Context, input string) (command.Result, error)
}

// Plugins reports plugin status.
type Plugins interface {
	Status() []core.PluginStatus
}

// Deps are the collaborators served over HTTP.
type Deps struct {
	Host     SurfaceHost
	Commands Commands
	Palette  Palette
	Plugins  Plugins
	Hub      *Hub
}

// Server serves the HTTP API and the browser UI surfaces.
type Server struct {
	cfg      Config
	deps     Deps
	basePath string
	baseHref string
	baseCtx  context.Context
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = NewHub(cfg.HistorySize)
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		basePath: normalizeBasePath(cfg.BasePath),
		baseHref: buildBaseHref(cfg.BaseURL, cfg.BasePath),
		baseCtx:  context.Background(),
	}
}

// SetBaseContext sets the context whose logger and fields are carried into
// operations started from HTTP requests.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.baseCtx = ctx
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS))))

	mux.HandleFunc("GET /api/commands", s.handleCommands)
	mux.HandleFunc("POST /api/commands/run", s.handleRunCommand)
	mux.HandleFunc("POST /api/palette", s.handlePalette)
	mux.HandleFunc("GET /api/plugins", s.handlePlugins)
	mux.HandleFunc("GET /api/panels", s.handlePanels)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/diagnostics", s.handleDiagnosticsList)
	mux.HandleFunc("GET /api/diagnostics/{name}", s.handleDiagnostics)

	mux.HandleFunc("GET /panels/{id}", s.handlePanelPage)
	mux.HandleFunc("GET /panels/{id}/stream", s.handlePanelStream)
	mux.HandleFunc("POST /panels/{id}/message", s.handlePanelMessage)
	mux.HandleFunc("POST /panels/{id}/dispose", s.handlePanelDispose)

	handler := withRequestLogging(mux, panelFromPath)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, "index.html", nil)
}

func (s *Server) handlePanelPage(w http.ResponseWriter, r *http.Request) {
	id := schema.PanelID(r.PathValue("id"))
	info, ok := s.surface(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	sources, _ := json.Marshal(s.cfg.Sources)
	s.serveAsset(w, r, "panel.html", map[string]string{
		panelIDPlaceholder:    html.EscapeString(string(info.ID)),
		panelTitlePlaceholder: html.EscapeString(info.Title),
		sourcesPlaceholder:    html.EscapeString(string(sources)),
	})
}

const (
	baseHrefPlaceholder   = "<!-- BASE_HREF -->"
	rootHrefPlaceholder   = "ROOT_HREF"
	panelIDPlaceholder    = "PANEL_ID"
	panelTitlePlaceholder = "PANEL_TITLE"
	sourcesPlaceholder    = "SOURCES_JSON"
)

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, name string, replacements map[string]string) {
	data, err := fs.ReadFile(assetsFS, name)
	if err != nil {
		http.Error(w, name+" not found", http.StatusInternalServerError)
		return
	}
	stat, err := fs.Stat(assetsFS, name)
	if err != nil {
		http.Error(w, name+" not found", http.StatusInternalServerError)
		return
	}
	data = applyBaseHref(data, s.baseHref)
	data = bytes.ReplaceAll(data, []byte(rootHrefPlaceholder), []byte(html.EscapeString(s.rootHref())))
	for placeholder, value := range replacements {
		data = bytes.ReplaceAll(data, []byte(placeholder), []byte(value))
	}
	http.ServeContent(w, r, name, stat.ModTime(), bytes.NewReader(data))
}

// rootHref is the prefix pages use for API and asset URLs.
func (s *Server) rootHref() string {
	if s.baseHref != "" {
		return s.baseHref
	}
	return s.basePath + "/"
}

func applyBaseHref(data []byte, baseHref string) []byte {
	replacement := ""
	if strings.TrimSpace(baseHref) != "" {
		replacement = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(baseHref))
	}
	return bytes.ReplaceAll(data, []byte(baseHrefPlaceholder), []byte(replacement))
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": s.deps.Commands.List()})
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	var payload struct {
		ID   schema.OperationID `json:"id"`
		Args []string           `json:"args"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http command decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	args := make([]any, 0, len(payload.Args))
	for _, arg := range payload.Args {
		args = append(args, arg)
	}
	log = log.With("command", payload.ID)
	log.Info("http command request", "args", len(args))
	if err := s.deps.Commands.Execute(s.operationContext(r), payload.ID, args...); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	var payload struct {
		Input string `json:"input"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http palette decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.deps.Palette.Handle(s.operationContext(r), payload.Input)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{
			"error":       err.Error(),
			"operation":   result.Operation,
			"suggestions": result.Suggestions,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.deps.Plugins.Status()})
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"panels": s.deps.Host.Surfaces()})
}

func (s *Server) handleDiagnosticsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"channels": s.deps.Host.Diagnostics().Names()})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ch, ok := s.deps.Host.Diagnostics().Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no diagnostic channel %q", name))
		return
	}
	writeJSON(w, http.StatusOK, ch.Snapshot(parseInt(r.URL.Query().Get("limit"), 0)))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, Global, nil)
}

func (s *Server) handlePanelStream(w http.ResponseWriter, r *http.Request) {
	id := schema.PanelID(r.PathValue("id"))
	info, ok := s.surface(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", schema.ErrPanelDisposed, id))
		return
	}
	s.stream(w, r, id, &StreamEvent{
		Type:      "hello",
		Panel:     info.ID,
		ViewType:  info.ViewType,
		Title:     info.Title,
		Timestamp: time.Now(),
	})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, key schema.PanelID, hello *StreamEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context()).With("panel", key, "remote", clientIP(r))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	ch, unsubscribe, seq, history := s.deps.Hub.Subscribe(key)
	defer unsubscribe()

	if hello != nil {
		_ = writeSSEvent(w, *hello)
	}
	replay := []StreamEvent(nil)
	if lastID > 0 {
		replay = replayAfter(history, lastID)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
	}
	flusher.Flush()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", len(replay))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= seq {
				continue
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
			if event.Type == string(schema.PanelDispose) {
				log.Info("http stream closed", "reason", "panel disposed")
				return
			}
		}
	}
}

func (s *Server) handlePanelMessage(w http.ResponseWriter, r *http.Request) {
	id := schema.PanelID(r.PathValue("id"))
	log := logx.Ctx(r.Context()).With("panel", id, "remote", clientIP(r))
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize+1))
	if err != nil {
		log.Warn("http panel message read failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > maxMessageSize {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("message exceeds 1MB limit"))
		return
	}
	if err := s.deps.Host.Deliver(s.operationContext(r), id, body); err != nil {
		log.Warn("http panel message rejected", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handlePanelDispose(w http.ResponseWriter, r *http.Request) {
	id := schema.PanelID(r.PathValue("id"))
	if err := s.deps.Host.Dispose(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) surface(id schema.PanelID) (host.SurfaceInfo, bool) {
	for _, info := range s.deps.Host.Surfaces() {
		if info.ID == id {
			return info, true
		}
	}
	return host.SurfaceInfo{}, false
}

// operationContext detaches work from the request lifetime. Plugin and panel
// markers on the request carry over.
func (s *Server) operationContext(r *http.Request) context.Context {
	return logx.CopyContextFields(s.baseCtx, r.Context())
}

func panelFromPath(r *http.Request) schema.PanelID {
	rest, ok := strings.CutPrefix(r.URL.Path, "/panels/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return schema.PanelID(id)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrUnknownOperation), errors.Is(err, schema.ErrPanelDisposed):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrPluginShapeInvalid):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrDuplicateOperation):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
