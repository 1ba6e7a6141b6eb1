package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/rooboost/schema"
)

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.writer.(http.Flusher); ok {
		f.Flush()
	}
}

type panelLookupFunc func(*http.Request) schema.PanelID

func withRequestLogging(next http.Handler, lookup panelLookupFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var panelID schema.PanelID
		if lookup != nil {
			panelID = lookup(r)
		}
		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path = path + "?" + r.URL.RawQuery
		}
		logger := pslog.Ctx(r.Context()).With("remote", clientIP(r))
		if panelID != "" {
			logger = logger.With("panel", panelID)
		}
		logger.Info("http request", "method", r.Method, "path", path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds())
		logger.Debug("http request details", "ua", r.UserAgent())
	})
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return r.RemoteAddr
}
