package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"icsgen/internal/config"
	"icsgen/internal/ics"
	appLog "icsgen/internal/log"
	"icsgen/internal/metric"
	"icsgen/internal/model"
	"icsgen/internal/request"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Server exposes the event builder over HTTP.
type Server struct {
	cfg     *config.Config
	debug   bool
	mux     *http.ServeMux
	loc     *time.Location
	builder *ics.Builder
	metrics *metric.Recorder
	reg     *prometheus.Registry
}

// NewServer constructs a new Server. Build collectors are registered on reg;
// a fresh registry is used when reg is nil.
func NewServer(cfg *config.Config, debug bool, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:     cfg,
		debug:   debug,
		mux:     http.NewServeMux(),
		loc:     resolveLocationOrUTC(cfg.Timezone),
		builder: ics.NewBuilder(cfg.BuilderOptions()...),
		metrics: metric.New(reg),
		reg:     reg,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// A blank username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="icsgen", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, debug bool, reg *prometheus.Registry) error {
	s := NewServer(cfg, debug, reg)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "debug", debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/ics", s.handleICS)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleICS builds one calendar document.
//
// GET  /api/ics?label=...&startDate=...&duration=PT1H
// POST /api/ics with a form body or a JSON body (Content-Type: application/json)
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	began := time.Now()
	req, err := s.decodeRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.builder.BuildResult(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ObserveBuild(res.Mode, len(res.Data), time.Since(began))

	appLog.Debug("api ics built",
		"mode", res.Mode,
		"uid", res.UID,
		"filename", res.Filename,
		"bytes", len(res.Data),
	)
	writeCalendar(w, res.EventOutput)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (model.EventRequest, error) {
	if r.Method == http.MethodGet {
		return request.FromValues(r.URL.Query(), s.loc)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return request.FromJSON(r.Body, s.loc)
	}
	if err := r.ParseForm(); err != nil {
		return model.EventRequest{}, &ics.ParseError{Field: "body", Err: err}
	}
	return request.FromValues(r.Form, s.loc)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.metrics.ObserveFailure(err)
	if ics.IsClientError(err) {
		appLog.Debug("api ics rejected", "err", err, "remote", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Error("api ics: build failed", err)
	writeError(w, http.StatusInternalServerError, "failed to build calendar")
}

// ContentDisposition returns an attachment header value for filename. Non
// ASCII names are encoded as filename* (RFC 2231).
func ContentDisposition(filename string) string {
	v := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if v == "" {
		return `attachment; filename="event.ics"`
	}
	return v
}

func writeCalendar(w http.ResponseWriter, out model.EventOutput) {
	w.Header().Set("Content-Type", out.MediaType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", ContentDisposition(out.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := out.WriteTo(w); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

func resolveLocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
